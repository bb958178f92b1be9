package handlers

import (
	"editorchat-backend/internal/models"
	"net/http"
)

type channelRequest struct {
	ID           int64    `json:"id,string"`
	Slug         string   `json:"slug" validate:"required,max=64"`
	Name         string   `json:"name" validate:"required,max=64"`
	Icon         string   `json:"icon" validate:"max=64"`
	Color        string   `json:"color" validate:"omitempty,hexcolor,len=7"`
	SortOrder    int      `json:"sortOrder"`
	IsPrivate    bool     `json:"isPrivate"`
	AllowedRoles []string `json:"allowedRoles" validate:"dive,oneof=admin editor author"`
}

func (c channelRequest) channel() models.Channel {
	return models.Channel{
		ID:           c.ID,
		Slug:         c.Slug,
		Name:         c.Name,
		Icon:         c.Icon,
		Color:        c.Color,
		SortOrder:    c.SortOrder,
		IsPrivate:    c.IsPrivate,
		AllowedRoles: c.AllowedRoles,
	}
}

func GetChannelList(w http.ResponseWriter, r *http.Request) {
	channels, err := reader.Channels(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, channels)
}

func CreateChannel(w http.ResponseWriter, r *http.Request) {
	var request channelRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	channel, err := processor.CreateChannel(r.Context(), currentUser(r), request.channel())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, channel)
}

func UpdateChannel(w http.ResponseWriter, r *http.Request) {
	var request channelRequest
	if !decodeRequest(w, r, &request) {
		return
	}
	if request.ID == 0 {
		http.Error(w, "Invalid channel ID", http.StatusBadRequest)
		return
	}

	channel, err := processor.UpdateChannel(r.Context(), currentUser(r), request.channel())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, channel)
}
