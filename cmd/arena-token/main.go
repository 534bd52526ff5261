// Dev helper: mints a signed token for poking the websocket and API surfaces
// with curl/websocat. Production tokens come from the login service.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wisko/chess-arena/internal/auth"
)

func main() {
	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		log.Fatal("AUTH_SECRET is required")
	}
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <user-id> [username] [ttl]", os.Args[0])
	}
	userID := os.Args[1]
	username := userID
	if len(os.Args) > 2 {
		username = os.Args[2]
	}
	ttl := 24 * time.Hour
	if len(os.Args) > 3 {
		d, err := time.ParseDuration(os.Args[3])
		if err != nil {
			log.Fatalf("bad ttl %q: %v", os.Args[3], err)
		}
		ttl = d
	}

	tok, err := auth.NewVerifier(secret).Mint(auth.Identity{UserID: userID, Username: username}, ttl)
	if err != nil {
		log.Fatalf("mint error: %v", err)
	}
	fmt.Println(tok)
}
