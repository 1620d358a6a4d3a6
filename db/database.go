package db

import (
	"database/sql"
	"fmt"
	"log"

	"MSMA/config"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't exist.
func InitDB() error {
	if err := createTracksTable(); err != nil {
		return err
	}
	if err := createGenresTable(); err != nil {
		return err
	}
	if err := createGenreLinksTable(); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createTracksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		artist_id BIGINT,
		title VARCHAR(255) NOT NULL,
		lyrics TEXT,
		duration DOUBLE DEFAULT 0,
		audio_url VARCHAR(512),
		image_url VARCHAR(512),
		declared_genres TEXT,
		status VARCHAR(32) NOT NULL DEFAULT 'SUBMITTED',
		status_note VARCHAR(512),
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_tracks_status (status),
		INDEX idx_tracks_artist (artist_id)
	)`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}
	return nil
}

func createGenresTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS genres (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(128) NOT NULL UNIQUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create genres table: %w", err)
	}
	return nil
}

func createGenreLinksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS genre_links (
		track_id BIGINT NOT NULL,
		genre_id BIGINT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (track_id, genre_id)
	)`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create genre_links table: %w", err)
	}
	return nil
}
