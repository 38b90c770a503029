package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/clinicore/authorization/config"
	"github.com/clinicore/authorization/internal/domain/entity"
	"github.com/clinicore/authorization/pkg/helpers"
)

// Seeds a receptionist account plus its AtWork mirror row so staff sign-in
// works on a fresh local database.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("pgx", cfg.PostgresDSN())
	if err != nil {
		log.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	email := "reception@clinic.local"
	password := "password123"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	accountID := uuid.NewString()
	err = db.QueryRow(`
		INSERT INTO accounts (id, email, password_hash, role, is_email_verified, created_by, updated_by)
		VALUES ($1, $2, $3, $4, TRUE, 'seed', 'seed')
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`, accountID, email, hash, entity.RoleReceptionist).Scan(&accountID)
	if err != nil {
		// lower(email) unique index: rerunning the seed finds the existing row
		if lookupErr := db.QueryRow(`SELECT id FROM accounts WHERE email = lower($1)`, email).Scan(&accountID); lookupErr != nil {
			log.Fatalf("failed to seed account: %v", err)
		}
		fmt.Printf("account already present: id=%s email=%s\n", accountID, email)
	} else {
		fmt.Printf("seeded account: id=%s email=%s password=%s\n", accountID, email, password)
	}

	var profileID string
	err = db.QueryRow(`SELECT id FROM receptionists WHERE account_id = $1`, accountID).Scan(&profileID)
	if err != nil {
		profileID = uuid.NewString()
		if _, err := db.Exec(`
			INSERT INTO receptionists (id, account_id, first_name, last_name, status)
			VALUES ($1, $2, 'Front', 'Desk', $3)
		`, profileID, accountID, entity.ProfileStatusAtWork); err != nil {
			log.Fatalf("failed to seed receptionist profile: %v", err)
		}
	} else if _, err := db.Exec(`UPDATE receptionists SET status = $1 WHERE id = $2`, entity.ProfileStatusAtWork, profileID); err != nil {
		log.Fatalf("failed to update receptionist profile: %v", err)
	}
	fmt.Println("receptionist profile ensured (AtWork)")
}
