package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample users, programs and role assignments for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sdb, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sdb.Close()

		db, err := initGorm(sdb)
		if err != nil {
			log.Fatalf("failed to init orm layer: %v", err)
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), cfg.Security.BCryptCost)

		users := []struct {
			Email   string
			Name    string
			IsAdmin bool
			IsDemo  bool
		}{
			{"admin@example.org", "Ada Admin", true, false},
			{"manager@example.org", "Morgan Manager", false, false},
			{"staff@example.org", "Sam Staff", false, false},
			{"demo@example.org", "Dev Demo", false, true},
		}

		for _, u := range users {
			var exists int
			if err := db.Raw("SELECT 1 FROM users WHERE email = ?", u.Email).Row().Scan(&exists); err == nil {
				fmt.Printf("user already exists: %s\n", u.Email)
				continue
			}
			if err := db.Exec("INSERT INTO users (email, name, password_hash, is_admin, is_demo, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, true, now(), now())", u.Email, u.Name, string(hash), u.IsAdmin, u.IsDemo).Error; err != nil {
				log.Fatalf("failed to insert user %s: %v", u.Email, err)
			}
			fmt.Printf("Seeded user: %s\n", u.Email)
		}

		programs := []struct {
			Name         string
			Desc         string
			Confidential bool
		}{
			{"Housing Support", "Emergency and transitional housing assistance", false},
			{"Food Assistance", "Weekly grocery and meal support", false},
			{"Counseling", "Individual counseling and crisis support", true},
		}

		for _, p := range programs {
			var exists int
			if err := db.Raw("SELECT 1 FROM programs WHERE name = ?", p.Name).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO programs (name, description, is_confidential, status, created_at, updated_at) VALUES (?, ?, ?, 'active', now(), now())", p.Name, p.Desc, p.Confidential).Error; err != nil {
				log.Fatalf("failed to insert program %s: %v", p.Name, err)
			}
			fmt.Printf("Seeded program: %s\n", p.Name)
		}

		assignments := []struct {
			Email   string
			Program string
			Role    string
		}{
			{"manager@example.org", "Housing Support", "program_manager"},
			{"manager@example.org", "Food Assistance", "program_manager"},
			{"staff@example.org", "Housing Support", "staff"},
			{"staff@example.org", "Counseling", "staff"},
			{"demo@example.org", "Housing Support", "staff"},
		}

		for _, a := range assignments {
			var userID, programID int64
			if err := db.Raw("SELECT id FROM users WHERE email = ?", a.Email).Row().Scan(&userID); err != nil {
				log.Fatalf("failed to lookup user %s: %v", a.Email, err)
			}
			if err := db.Raw("SELECT id FROM programs WHERE name = ?", a.Program).Row().Scan(&programID); err != nil {
				log.Fatalf("failed to lookup program %s: %v", a.Program, err)
			}

			var exists int
			if err := db.Raw("SELECT 1 FROM role_assignments WHERE user_id = ? AND program_id = ?", userID, programID).Row().Scan(&exists); err == nil {
				continue
			}
			if err := db.Exec("INSERT INTO role_assignments (user_id, program_id, role, status, created_at, updated_at) VALUES (?, ?, ?, 'active', now(), now())", userID, programID, a.Role).Error; err != nil {
				log.Fatalf("failed to assign %s role on %s to %s: %v", a.Role, a.Program, a.Email, err)
			}
			fmt.Printf("Assigned %s role on %s to %s\n", a.Role, a.Program, a.Email)
		}

		fmt.Println("Sample data seeded successfully")
	},
}
