package audit

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
)

const (
	trackingCodePrefix   = "CARGO-"
	trackingCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	trackingCodeRandLen  = 6
)

type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Assigner fills in the tracking code and creator of a cargo that is about to be inserted.
type Assigner struct {
	r   Rand
	now func() time.Time
}

func NewAssigner(r Rand, now func() time.Time) *Assigner {
	if r == nil {
		r = globalRand{}
	}
	if now == nil {
		now = time.Now
	}
	return &Assigner{r: r, now: now}
}

// BeforeCreate never fails: a pre-set tracking code or creator is kept, and a
// missing actor simply leaves CreatedBy empty. Generated codes are not checked
// against the store for uniqueness.
func (a *Assigner) BeforeCreate(c *models.Cargo, actor *models.Actor) {
	if c.TrackingCode == "" {
		c.TrackingCode = a.NewTrackingCode()
	}
	if c.CreatedBy == "" && actor != nil {
		c.CreatedBy = actor.ID
	}
}

// NewTrackingCode returns CARGO-YYYYMMDD-XXXXXX using the current UTC date.
func (a *Assigner) NewTrackingCode() string {
	var b strings.Builder
	b.Grow(len(trackingCodePrefix) + 8 + 1 + trackingCodeRandLen)
	b.WriteString(trackingCodePrefix)
	b.WriteString(a.now().UTC().Format("20060102"))
	b.WriteByte('-')
	for i := 0; i < trackingCodeRandLen; i++ {
		b.WriteByte(trackingCodeAlphabet[a.r.IntN(len(trackingCodeAlphabet))])
	}
	return b.String()
}
