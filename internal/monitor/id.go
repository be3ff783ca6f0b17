package monitor

import "github.com/google/uuid"

// ID は待機者を識別する不透明なトークン
type ID uuid.UUID

// NewID は新しい ID を発行する
func NewID() ID {
	return ID(uuid.New())
}

// IsZero はゼロ値かどうかを返す
func (id ID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Short はログ用の短縮表記を返す
func (id ID) Short() string {
	return id.String()[:8]
}
