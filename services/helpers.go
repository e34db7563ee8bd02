package services

import (
	"fmt"
	"strings"

	"github.com/grandstand-picks/grandstand/models"
	"github.com/grandstand-picks/grandstand/storage"
)

// RoomBroadcaster pushes live updates to the clients of a tournament room.
type RoomBroadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// validateScoreShape enforces the set-count rules of a completed match:
// the winner takes 2 or 3 sets and the loser always fewer.
func validateScoreShape(setsWon, setsLost int) error {
	if setsWon != 2 && setsWon != 3 {
		return fmt.Errorf("%w: sets won must be 2 or 3, got %d", ErrInvalidScoreShape, setsWon)
	}
	if setsLost < 0 || setsLost >= setsWon {
		return fmt.Errorf("%w: sets lost must be between 0 and %d, got %d", ErrInvalidScoreShape, setsWon-1, setsLost)
	}
	return nil
}

// validateScoreForFormat ties the winner's set count to the tournament
// format: best-of-three ends at 2 sets won, best-of-five at 3.
func validateScoreForFormat(format models.TournamentFormat, setsWon int) error {
	switch format {
	case models.FormatBestOfThree:
		if setsWon != 2 {
			return fmt.Errorf("%w: best-of-three matches end with 2 sets won, got %d", ErrScoreFormatMismatch, setsWon)
		}
	case models.FormatBestOfFive:
		if setsWon != 3 {
			return fmt.Errorf("%w: best-of-five matches end with 3 sets won, got %d", ErrScoreFormatMismatch, setsWon)
		}
	}
	return nil
}

func populateTournamentLogoURL(tournament *models.Tournament, uploader storage.FileUploader) {
	if tournament != nil && tournament.LogoKey != nil && *tournament.LogoKey != "" && uploader != nil {
		url := uploader.GetPublicURL(*tournament.LogoKey)
		if url != "" {
			tournament.LogoURL = &url
		}
	}
}

// GetExtensionFromContentType maps an image content type to a file
// extension for storage keys.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type: '%s'", contentType)
	}
}
