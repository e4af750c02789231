package challenge

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind selects which media a challenge is delivered as.
type Kind int

const (
	KindImage Kind = iota
	KindAudio
	KindBoth
)

func Kinds() []Kind { return []Kind{KindImage, KindAudio, KindBoth} }

func ParseKind(s string) (Kind, error) {
	switch s {
	case "image":
		return KindImage, nil
	case "audio":
		return KindAudio, nil
	case "both", "combined":
		return KindBoth, nil
	default:
		return 0, fmt.Errorf("%w: unknown challenge kind %q", ErrInvalidInput, s)
	}
}

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindAudio:
		return "audio"
	case KindBoth:
		return "both"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) Valid() error {
	switch k {
	case KindImage, KindAudio, KindBoth:
		return nil
	default:
		return fmt.Errorf("%w: unknown challenge kind %d", ErrInvalidInput, int(k))
	}
}

// WantsImage reports whether k includes a rendered image.
func (k Kind) WantsImage() bool { return k == KindImage || k == KindBoth }

// WantsAudio reports whether k includes a spoken clip.
func (k Kind) WantsAudio() bool { return k == KindAudio || k == KindBoth }

func (k Kind) LogValue() slog.Value { return slog.StringValue(k.String()) }

// Challenge is the metadata about a single challenge issuance. It only lives
// for the duration of the request that issues it.
type Challenge struct {
	ID       string    `json:"id"`       // UUIDv7 used to correlate logs
	Kind     Kind      `json:"kind"`     // Which media were rendered
	IssuedAt time.Time `json:"issuedAt"` // When the challenge was issued
	Address  string    `json:"address"`  // Requester address the token is bound to
	Text     string    `json:"-"`        // The answer, never serialized
}

func New(kind Kind, address string) *Challenge {
	return &Challenge{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Kind:     kind,
		IssuedAt: time.Now(),
		Address:  address,
	}
}

func (c *Challenge) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", c.ID),
		slog.Any("kind", c.Kind),
	)
}
