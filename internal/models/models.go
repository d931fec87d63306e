// Package models holds the typed records the crawler persists: climbing
// areas, the routes inside them and the photos of each route.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRecord is wrapped by every constructor validation failure.
var ErrInvalidRecord = errors.New("invalid record")

// Area is a node of the site's geographic hierarchy that the crawl was
// rooted at. TotalRoutes is the route count advertised by its immediate
// children at crawl time, not a live count of stored routes.
type Area struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"column:area_name;size:255;not null;uniqueIndex" json:"name"`
	Link        string    `gorm:"column:area_link;not null;uniqueIndex" json:"link"`
	Lat         float64   `gorm:"column:area_lat;not null" json:"lat"`
	Lon         float64   `gorm:"column:area_lon;not null" json:"lon"`
	TotalRoutes int       `gorm:"column:total_routes;not null" json:"total_routes"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`

	Routes []Route `gorm:"foreignKey:AreaID;constraint:OnDelete:CASCADE" json:"routes,omitempty"`
}

func (Area) TableName() string { return "climbing_areas" }

// NewArea builds a validated Area.
func NewArea(name, link string, coord Coordinate, totalRoutes int) (*Area, error) {
	a := &Area{
		Name:        strings.TrimSpace(name),
		Link:        strings.TrimSpace(link),
		Lat:         coord.Lat,
		Lon:         coord.Lon,
		TotalRoutes: totalRoutes,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate rejects areas missing a required field.
func (a *Area) Validate() error {
	switch {
	case a.Name == "":
		return fmt.Errorf("%w: area name is empty", ErrInvalidRecord)
	case a.Link == "":
		return fmt.Errorf("%w: area %q has no link", ErrInvalidRecord, a.Name)
	case a.TotalRoutes < 0:
		return fmt.Errorf("%w: area %q has negative route count", ErrInvalidRecord, a.Name)
	}
	if err := a.Coordinate().Validate(); err != nil {
		return fmt.Errorf("%w: area %q: %v", ErrInvalidRecord, a.Name, err)
	}
	return nil
}

// Coordinate returns the area's GPS position.
func (a *Area) Coordinate() Coordinate { return Coordinate{Lat: a.Lat, Lon: a.Lon} }

// Route is a single climbable line. Link is its natural key.
type Route struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"column:route_name;size:255;not null;index" json:"name"`
	Link      string    `gorm:"column:route_link;not null;uniqueIndex" json:"link"`
	Lat       float64   `gorm:"column:route_lat;not null" json:"lat"`
	Lon       float64   `gorm:"column:route_lon;not null" json:"lon"`
	Type      ClimbType `gorm:"column:route_type;size:255;not null" json:"type"`
	Grade     string    `gorm:"column:route_grade;size:255;not null" json:"grade"`
	Stars     float64   `gorm:"column:route_stars;not null" json:"stars"`
	Length    float64   `gorm:"column:route_length;not null" json:"length_ft"`
	AreaID    uint      `gorm:"column:area_id;index" json:"area_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	Images []RouteImage `gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
}

func (Route) TableName() string { return "climbing_routes" }

// RouteFields carries the values scraped from a route page.
type RouteFields struct {
	Name   string
	Link   string
	Coord  Coordinate
	Type   ClimbType
	Grade  string
	Stars  float64
	Length float64
}

// NewRoute builds a validated Route that is not yet attached to an area.
func NewRoute(f RouteFields) (*Route, error) {
	r := &Route{
		Name:   strings.TrimSpace(f.Name),
		Link:   strings.TrimSpace(f.Link),
		Lat:    f.Coord.Lat,
		Lon:    f.Coord.Lon,
		Type:   f.Type,
		Grade:  strings.TrimSpace(f.Grade),
		Stars:  f.Stars,
		Length: f.Length,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate rejects routes missing a required field.
func (r *Route) Validate() error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: route name is empty", ErrInvalidRecord)
	case r.Link == "":
		return fmt.Errorf("%w: route %q has no link", ErrInvalidRecord, r.Name)
	case r.Grade == "":
		return fmt.Errorf("%w: route %q has no grade", ErrInvalidRecord, r.Name)
	case r.Stars < 0 || r.Stars > MaxStars:
		return fmt.Errorf("%w: route %q stars %v outside 0..%v", ErrInvalidRecord, r.Name, r.Stars, MaxStars)
	case r.Length < 0:
		return fmt.Errorf("%w: route %q has negative length", ErrInvalidRecord, r.Name)
	}
	if err := r.Coordinate().Validate(); err != nil {
		return fmt.Errorf("%w: route %q: %v", ErrInvalidRecord, r.Name, err)
	}
	return nil
}

// Coordinate returns the route's GPS position.
func (r *Route) Coordinate() Coordinate { return Coordinate{Lat: r.Lat, Lon: r.Lon} }

// MaxStars is the top of the site's average star scale.
const MaxStars = 4.0

// RouteImage is one full-resolution photo of a route. A route never holds
// the same link twice.
type RouteImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RouteID   uint      `gorm:"column:route_id;uniqueIndex:_route_image_uc;index" json:"route_id"`
	Link      string    `gorm:"column:image_link;not null;uniqueIndex:_route_image_uc" json:"link"`
	CreatedAt time.Time `json:"created_at"`
}

func (RouteImage) TableName() string { return "route_images" }

// RouteDetail is the long-form text of a route page.
type RouteDetail struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	RouteID     uint   `gorm:"column:route_id;not null;uniqueIndex" json:"route_id"`
	Description string `gorm:"column:description;type:text" json:"description"`
	Location    string `gorm:"column:location;type:text" json:"location"`
	Protection  string `gorm:"column:protection;type:text" json:"protection"`

	Route *Route `gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE" json:"-"`
}

func (RouteDetail) TableName() string { return "mp_descriptions" }

// RouteComment is one user comment left on a route page. Hash is the
// SHA-256 of Text and keeps re-crawls from duplicating comments.
type RouteComment struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	RouteID uint   `gorm:"column:route_id;not null;uniqueIndex:_route_comment_uc" json:"route_id"`
	Hash    string `gorm:"column:comment_hash;size:64;not null;uniqueIndex:_route_comment_uc" json:"-"`
	Text    string `gorm:"column:comment_text;type:text" json:"text"`

	Route *Route `gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE" json:"-"`
}

func (RouteComment) TableName() string { return "mp_comments" }
