package models

import "time"

type Zone struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type Store struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Address   string    `bson:"address" json:"address"`
	ZoneID    string    `bson:"zone_id" json:"zone_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	Zone *Zone `bson:"-" json:"zone,omitempty"`
}
