package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const DefaultMaxIDLength = 255

// ParamError reports a query or path parameter that could not be accepted.
type ParamError struct {
	Name   string
	Value  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Name, e.Value, e.Reason)
}

type Config struct {
	MaxIDLength int
	Logger      *zap.Logger
}

// IDGuard rejects path identifiers that could escape a data directory. It must
// be registered on the route that declares the params.
func IDGuard(cfg Config, params ...string) fiber.Handler {
	if cfg.MaxIDLength == 0 {
		cfg.MaxIDLength = DefaultMaxIDLength
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		for _, name := range params {
			value := c.Params(name)
			if reason := checkID(value, cfg.MaxIDLength); reason != "" {
				cfg.Logger.Warn("Rejected path identifier",
					zap.String("ip", c.IP()),
					zap.String("param", name),
					zap.String("value", value),
					zap.String("reason", reason),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": (&ParamError{Name: name, Value: value, Reason: reason}).Error(),
				})
			}
		}
		return c.Next()
	}
}

func checkID(id string, maxLen int) string {
	switch {
	case id == "":
		return "empty"
	case len(id) > maxLen:
		return "too long"
	case strings.ContainsAny(id, `/\`+"\x00"):
		return "contains a path separator"
	case strings.Contains(id, ".."):
		return "contains a parent reference"
	}
	return ""
}

// OptionalInt parses an integer query parameter. Absent or empty yields nil.
func OptionalInt(c *fiber.Ctx, name string) (*int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &ParamError{Name: name, Value: raw, Reason: "not an integer"}
	}
	return &n, nil
}

// OptionalFloat parses a finite number query parameter. Absent or empty yields nil.
func OptionalFloat(c *fiber.Ctx, name string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &ParamError{Name: name, Value: raw, Reason: "not a number"}
	}
	return &f, nil
}

// Pagination reads offset and limit. A missing limit yields defaultLimit.
func Pagination(c *fiber.Ctx, defaultLimit int) (offset, limit int, err error) {
	o, err := OptionalInt(c, "offset")
	if err != nil {
		return 0, 0, err
	}
	if o != nil {
		if *o < 0 {
			return 0, 0, &ParamError{Name: "offset", Value: c.Query("offset"), Reason: "must not be negative"}
		}
		offset = *o
	}

	limit = defaultLimit
	l, err := OptionalInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	if l != nil {
		if *l < 0 {
			return 0, 0, &ParamError{Name: "limit", Value: c.Query("limit"), Reason: "must not be negative"}
		}
		limit = *l
	}

	return offset, limit, nil
}

// IDList splits a comma separated list, dropping blanks.
func IDList(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
