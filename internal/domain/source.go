package domain

import "time"

// Source identifies a registered upstream system allowed to post events.
// Sources are provisioned out of band (seed fixtures or direct SQL) — the
// core only ever reads them.
type Source struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HMACSecret string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
