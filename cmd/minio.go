package cmd

import (
	"context"
	"fmt"
	"log"

	"MSMA/config"
	"MSMA/storage"

	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect the MinIO bucket",
	Long:  `Connect to MinIO with the configured settings and list the objects under a prefix.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("MinIO config: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("failed to connect to MinIO: %v", err)
		}
		fmt.Println("MinIO connection established")

		if err := storage.ListObjects(context.Background(), minioPrefix); err != nil {
			log.Fatalf("failed to list objects: %v", err)
		}
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "object key prefix to list")
	rootCmd.AddCommand(minioCmd)
}
