/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/classvault/apiserver/config"
	"github.com/classvault/apiserver/internal/db"
	"github.com/classvault/apiserver/internal/store"
	"github.com/classvault/apiserver/types"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var seedUserCount int

// seedCmd populates the database with fake accounts and file metadata for
// local development. Not meant for production databases.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with fake development data",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database failed: %w", err)
		}
		defer func() {
			_ = dbConn.Close()
		}()

		userRepo := store.NewUserRepository(dbConn)
		fileRepo := store.NewFileRepository(dbConn)

		bucket := cfg.Minio.Bucket
		if cfg.Storage.Backend == "gcs" {
			bucket = cfg.GCS.Bucket
		}

		extensions := []string{"pdf", "docx", "png", "jpg", "mp4", "mp3", "txt", "zip"}
		typeByExt := map[string]string{
			"pdf": types.FileTypeDocument, "docx": types.FileTypeDocument, "txt": types.FileTypeDocument,
			"png": types.FileTypeImage, "jpg": types.FileTypeImage,
			"mp4": types.FileTypeVideo, "mp3": types.FileTypeAudio, "zip": types.FileTypeOther,
		}

		for i := 0; i < seedUserCount; i++ {
			user, err := userRepo.Create(cmd.Context(), types.User{
				ID:              uuid.NewString(),
				AccountID:       uuid.NewString(),
				FullName:        gofakeit.Name(),
				Email:           strings.ToLower(gofakeit.Email()),
				Avatar:          types.AvatarPlaceholderURL,
				IsStudent:       gofakeit.Bool(),
				DashboardAccess: false,
			})
			if err != nil {
				return fmt.Errorf("seed user failed: %w", err)
			}

			for j := 0; j < gofakeit.Number(1, 5); j++ {
				ext := extensions[gofakeit.Number(0, len(extensions)-1)]
				name := fmt.Sprintf("%s.%s", gofakeit.Word(), ext)
				bucketFileID := uuid.NewString()
				if _, err := fileRepo.Create(cmd.Context(), types.File{
					ID:           uuid.NewString(),
					OwnerID:      user.ID,
					AccountID:    user.AccountID,
					Name:         name,
					Extension:    ext,
					Type:         typeByExt[ext],
					Size:         int64(gofakeit.Number(1<<10, 8<<20)),
					URL:          fmt.Sprintf("/files/objects/%s/%s", bucket, bucketFileID),
					BucketFileID: bucketFileID,
				}); err != nil {
					return fmt.Errorf("seed file failed: %w", err)
				}
			}
		}

		fmt.Printf("seeded %d users\n", seedUserCount)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().IntVar(&seedUserCount, "users", 25, "number of fake users to create")
}
