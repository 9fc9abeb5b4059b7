// Command hashpw prints the bcrypt hash of a password for auth.users in the
// server configuration. The password is read from the first argument or, if
// absent, from the first line of stdin.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"slope-monitor-backend/internal/auth"
)

func main() {
	log.SetFlags(0)

	var password string
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("reading password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		log.Fatal("usage: hashpw <password>  (or pipe the password on stdin)")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("hashing password: %v", err)
	}
	fmt.Println(hash)
}
