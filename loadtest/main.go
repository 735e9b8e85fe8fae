package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

type claims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func main() {
	wsURL := flag.String("url", "ws://localhost:8080/ws/chat", "chat websocket base url")
	rooms := flag.String("rooms", "", "comma separated room ids (must exist in chat_rooms)")
	users := flag.Int("users", 50, "connections per room")
	msgs := flag.Int("messages", 20, "messages per connection")
	issuer := flag.String("issuer", "", "jwt issuer claim")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	roomIDs := strings.Split(*rooms, ",")
	if *rooms == "" {
		log.Fatal("-rooms is required")
	}

	log.Printf("starting load test: %d rooms x %d users x %d messages", len(roomIDs), *users, *msgs)

	var (
		wg       sync.WaitGroup
		sent     atomic.Int64
		received atomic.Int64
		failed   atomic.Int64
		nextUser atomic.Int64
	)
	start := time.Now()

	for _, room := range roomIDs {
		for i := 0; i < *users; i++ {
			id := nextUser.Add(1)
			token, err := mintToken(secret, *issuer, id)
			if err != nil {
				log.Fatalf("mint token: %v", err)
			}

			wg.Add(1)
			go func(room, token string, id int64) {
				defer wg.Done()
				if err := spamChat(*wsURL+"/"+room, token, *msgs, &sent, &received); err != nil {
					failed.Add(1)
					log.Printf("user %d in %s: %v", id, room, err)
				}
			}(strings.TrimSpace(room), token, id)
		}
	}

	wg.Wait()
	elapsed := time.Since(start)
	log.Printf("done in %s: sent=%d received=%d failed_connections=%d (%.0f msg/s)",
		elapsed, sent.Load(), received.Load(), failed.Load(), float64(sent.Load())/elapsed.Seconds())
}

func mintToken(secret, issuer string, userID int64) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID:   userID,
		Username: fmt.Sprintf("loadtest_%d", userID),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	return token.SignedString([]byte(secret))
}

func spamChat(url, token string, count int, sent, received *atomic.Int64) error {
	conn, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Count everything the room sends us until we go quiet.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	for i := 0; i < count; i++ {
		if err := conn.WriteJSON(map[string]string{"message": fmt.Sprintf("load test message %d", i)}); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		sent.Add(1)
		// Small sleep so localhost runs look like real clients.
		time.Sleep(10 * time.Millisecond)
	}

	<-readDone
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}
