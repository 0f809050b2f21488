// Package models defines the mirror store document models.
package models

import (
	"time"

	"github.com/base-guestbook/internal/types"
)

// User is a wallet-holding user in the mirror store, keyed by lowercase
// wallet address. Created on first sign-in, mutated on every activity,
// never deleted.
type User struct {
	UserID         string    `bson:"userId" json:"userId"`
	WalletAddress  string    `bson:"walletAddress" json:"walletAddress"`
	Username       string    `bson:"username" json:"username"`
	TotalMessages  int64     `bson:"totalMessages" json:"totalMessages"`
	TotalReactions int64     `bson:"totalReactions" json:"totalReactions"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	LastActiveAt   time.Time `bson:"lastActiveAt" json:"lastActiveAt"`
}

// BlockchainData carries optional chain context on an activity record
type BlockchainData struct {
	ChainID  int64  `bson:"chainId" json:"chainId"`
	Network  string `bson:"network" json:"network"`
	GasUsed  string `bson:"gasUsed,omitempty" json:"gasUsed,omitempty"`
	GasPrice string `bson:"gasPrice,omitempty" json:"gasPrice,omitempty"`
}

// Activity is an immutable append-only event record. Write-once.
type Activity struct {
	ActivityID     string                 `bson:"activityId" json:"activityId"`
	UserID         string                 `bson:"userId" json:"userId"`
	WalletAddress  string                 `bson:"walletAddress" json:"walletAddress"`
	Type           types.ActivityType     `bson:"type" json:"type"`
	Data           map[string]interface{} `bson:"data" json:"data"`
	Timestamp      time.Time              `bson:"timestamp" json:"timestamp"`
	BlockchainData *BlockchainData        `bson:"blockchainData,omitempty" json:"blockchainData,omitempty"`
}
