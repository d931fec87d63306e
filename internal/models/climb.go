package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ClimbType is the discipline a route is climbed in.
type ClimbType string

const (
	ClimbTopRope ClimbType = "top-rope"
	ClimbTrad    ClimbType = "trad"
	ClimbSport   ClimbType = "sport"
	ClimbBoulder ClimbType = "boulder"
	ClimbOther   ClimbType = "other"
)

// ParseClimbType maps the site's "Type:" label onto a ClimbType.
func ParseClimbType(label string) ClimbType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "tr", "top rope", "top-rope", "toprope":
		return ClimbTopRope
	case "trad":
		return ClimbTrad
	case "sport":
		return ClimbSport
	case "boulder":
		return ClimbBoulder
	default:
		return ClimbOther
	}
}

// NewRouteComment builds a comment record keyed by the hash of its text.
func NewRouteComment(routeID uint, text string) RouteComment {
	text = strings.TrimSpace(text)
	sum := sha256.Sum256([]byte(text))
	return RouteComment{
		RouteID: routeID,
		Hash:    hex.EncodeToString(sum[:]),
		Text:    text,
	}
}
