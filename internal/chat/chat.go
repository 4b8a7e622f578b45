// Package chat is the contract between the bot and whatever chat network
// carries its channel.
package chat

import "context"

// Sender posts text to the bot's channel.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Channel is a Sender that can also report how many members are present.
type Channel interface {
	Sender
	Occupancy(ctx context.Context) (int, error)
}
