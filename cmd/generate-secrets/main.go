package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/smarttransit/busline-backend/internal/models"
	"github.com/smarttransit/busline-backend/internal/utils"
	"github.com/smarttransit/busline-backend/pkg/jwt"
)

func main() {
	role := flag.String("role", "", "also print a development access token for this role (PASSENGER, DRIVER, STAFF, ADMIN)")
	userID := flag.String("user", "", "user id for the development token (random when empty)")
	issuer := flag.String("issuer", "smarttransit-busline", "token issuer, must match JWT_ISSUER")
	expiry := flag.Duration("expiry", 24*time.Hour, "development token lifetime")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("JWT Secret Generator for SmartTransit")
	fmt.Println("===========================================")
	fmt.Println()

	secret, err := utils.GenerateJWTSecret()
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("Add this to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Printf("JWT_ISSUER=%s\n", *issuer)
	fmt.Println()

	if *role != "" {
		r, ok := models.ParseRole(*role)
		if !ok {
			log.Fatalf("Invalid role: %s", *role)
		}
		id := *userID
		if id == "" {
			id = uuid.New().String()
		}

		token, err := jwt.NewService(secret, *issuer, *expiry).GenerateAccessToken(id, string(r))
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Printf("Development token (%s, user %s, expires in %s):\n", r, id, *expiry)
		fmt.Println(token)
		fmt.Println()
	}

	fmt.Println("IMPORTANT: Keep these secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
