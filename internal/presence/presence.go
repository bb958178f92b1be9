package presence

import (
	"editorchat-backend/internal/models"
	"time"
)

const OnlineWindow = 5 * time.Minute

// IsOnline is recomputed on every read. A zero lastSeen means the user has
// never been seen.
func IsOnline(lastSeen time.Time, now time.Time) bool {
	if lastSeen.IsZero() {
		return false
	}
	return now.Sub(lastSeen) <= OnlineWindow
}

// Members turns users into roster entries with presence as of now.
func Members(users []models.User, now time.Time) []models.Member {
	members := make([]models.Member, 0, len(users))
	for _, user := range users {
		members = append(members, models.Member{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Role:        user.Role,
			Online:      IsOnline(user.LastSeenAt, now),
			LastSeenAt:  user.LastSeenAt,
		})
	}
	return members
}
