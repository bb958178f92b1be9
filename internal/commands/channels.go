package commands

import (
	"context"
	"editorchat-backend/internal/access"
	"editorchat-backend/internal/chaterr"
	"editorchat-backend/internal/models"
	"editorchat-backend/internal/validator"
	"strings"
)

func validateChannel(channel *models.Channel) error {
	channel.Slug = strings.TrimSpace(channel.Slug)
	channel.Name = strings.TrimSpace(channel.Name)

	if err := validator.Slug(channel.Slug); err != nil {
		return chaterr.Validation("%s", err.Error())
	}
	if channel.Name == "" {
		return chaterr.Validation("empty_name")
	}
	if len(channel.Name) > 64 {
		return chaterr.Validation("long_name")
	}
	if len(channel.Icon) > 64 {
		return chaterr.Validation("long_icon")
	}
	if err := validator.Color(channel.Color); err != nil {
		return chaterr.Validation("%s", err.Error())
	}
	return nil
}

func (p *Processor) CreateChannel(ctx context.Context, actor models.User, channel models.Channel) (models.Channel, error) {
	if !access.CanManageChannels(actor) {
		return channel, chaterr.Permission("only administrators manage channels")
	}
	if err := validateChannel(&channel); err != nil {
		return channel, err
	}

	created, err := p.store.CreateChannel(ctx, channel)
	if err != nil {
		return created, err
	}

	p.sugar.Infof("User ID %d created channel %s (ID %d)", actor.ID, created.Slug, created.ID)
	return created, nil
}

func (p *Processor) UpdateChannel(ctx context.Context, actor models.User, channel models.Channel) (models.Channel, error) {
	if !access.CanManageChannels(actor) {
		return channel, chaterr.Permission("only administrators manage channels")
	}
	if err := validateChannel(&channel); err != nil {
		return channel, err
	}

	return p.store.UpdateChannel(ctx, channel)
}
