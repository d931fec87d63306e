// Package store persists crawled areas, routes and images. One Store
// interface hides both SQL dialects; every write is an upsert keyed by the
// record's natural key so repeated crawls converge instead of duplicating.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramkansal/routeguessr/internal/logger"
	"github.com/ramkansal/routeguessr/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	// ErrAreaNotPersisted is returned when a route is written without the id
	// of a stored area.
	ErrAreaNotPersisted = errors.New("area not persisted")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown database driver")
	// ErrAreaLinkTaken is returned when an area's link is already stored
	// under a different name.
	ErrAreaLinkTaken = errors.New("area link stored under another name")
)

// Counts is the number of rows per table.
type Counts struct {
	Areas    int64 `json:"areas"`
	Routes   int64 `json:"routes"`
	Images   int64 `json:"images"`
	Details  int64 `json:"details"`
	Comments int64 `json:"comments"`
}

// Store is the persistence layer used by the crawler, the migrator and the API.
type Store interface {
	// UpsertArea inserts or updates an area keyed by name and returns its id.
	UpsertArea(ctx context.Context, a *models.Area) (uint, error)
	// UpsertRoute inserts or updates a route keyed by link, attaching it to areaID.
	UpsertRoute(ctx context.Context, r *models.Route, areaID uint) (uint, error)
	// UpsertRouteImages adds image links to a route, ignoring ones already
	// stored, and returns how many were new.
	UpsertRouteImages(ctx context.Context, routeID uint, links []string) (int, error)
	UpsertRouteDetail(ctx context.Context, d *models.RouteDetail) error
	// AddRouteComments stores comments not yet present and returns how many were new.
	AddRouteComments(ctx context.Context, routeID uint, texts []string) (int, error)

	ListAreas(ctx context.Context) ([]models.Area, error)
	ListRoutes(ctx context.Context) ([]models.Route, error)
	ListRouteImages(ctx context.Context) ([]models.RouteImage, error)
	ListRouteDetails(ctx context.Context) ([]models.RouteDetail, error)
	ListRouteComments(ctx context.Context) ([]models.RouteComment, error)
	// RoutesWithoutDetail lists routes lacking a detail record, oldest first.
	// A limit of zero or less means no limit.
	RoutesWithoutDetail(ctx context.Context, limit int) ([]models.Route, error)
	Counts(ctx context.Context) (Counts, error)
	Close() error
}

// GormStore implements Store on top of gorm.
type GormStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to the database named by driver and dsn and migrates the schema.
func Open(driver, dsn string, log zerolog.Logger) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.NewGormLogger(log)})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	s := &GormStore{db: db, log: log.With().Str("component", "store").Str("driver", driver).Logger()}
	if err := s.migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *GormStore) migrate() error {
	err := s.db.AutoMigrate(
		&models.Area{},
		&models.Route{},
		&models.RouteImage{},
		&models.RouteDetail{},
		&models.RouteComment{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertArea(ctx context.Context, a *models.Area) (uint, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	var owner models.Area
	err := s.db.WithContext(ctx).Where("area_link = ? AND area_name <> ?", a.Link, a.Name).Limit(1).Find(&owner).Error
	if err != nil {
		return 0, fmt.Errorf("upsert area %q: %w", a.Name, err)
	}
	if owner.ID != 0 {
		return 0, fmt.Errorf("upsert area %q: %w: %q", a.Name, ErrAreaLinkTaken, owner.Name)
	}

	row := *a
	row.ID = 0
	row.Routes = nil

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "area_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"area_lat", "area_lon", "total_routes"}),
	}).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("upsert area %q: %w", a.Name, err)
	}

	var stored models.Area
	if err := s.db.WithContext(ctx).Where("area_name = ?", a.Name).Take(&stored).Error; err != nil {
		return 0, fmt.Errorf("reload area %q: %w", a.Name, err)
	}
	a.ID = stored.ID
	return stored.ID, nil
}

func (s *GormStore) UpsertRoute(ctx context.Context, r *models.Route, areaID uint) (uint, error) {
	if areaID == 0 {
		return 0, fmt.Errorf("route %q: %w", r.Link, ErrAreaNotPersisted)
	}
	if err := r.Validate(); err != nil {
		return 0, err
	}
	row := *r
	row.ID = 0
	row.AreaID = areaID
	row.Images = nil

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "route_link"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"route_name", "route_lat", "route_lon", "route_type",
			"route_grade", "route_stars", "route_length", "area_id",
		}),
	}).Create(&row).Error
	if err != nil {
		return 0, fmt.Errorf("upsert route %q: %w", r.Link, err)
	}

	var stored models.Route
	if err := s.db.WithContext(ctx).Where("route_link = ?", r.Link).Take(&stored).Error; err != nil {
		return 0, fmt.Errorf("reload route %q: %w", r.Link, err)
	}
	r.ID = stored.ID
	r.AreaID = areaID
	return stored.ID, nil
}

func (s *GormStore) UpsertRouteImages(ctx context.Context, routeID uint, links []string) (int, error) {
	if routeID == 0 {
		s.log.Warn().Int("images", len(links)).Msg("skipping images for a route that was not persisted")
		return 0, nil
	}

	rows := make([]models.RouteImage, 0, len(links))
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		rows = append(rows, models.RouteImage{RouteID: routeID, Link: link})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "route_id"}, {Name: "image_link"}},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert images of route %d: %w", routeID, res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *GormStore) UpsertRouteDetail(ctx context.Context, d *models.RouteDetail) error {
	if d.RouteID == 0 {
		return fmt.Errorf("route detail: %w", models.ErrInvalidRecord)
	}
	row := *d
	row.ID = 0
	row.Route = nil

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "route_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "location", "protection"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert detail of route %d: %w", d.RouteID, err)
	}
	return nil
}

func (s *GormStore) AddRouteComments(ctx context.Context, routeID uint, texts []string) (int, error) {
	if routeID == 0 {
		return 0, fmt.Errorf("route comments: %w", models.ErrInvalidRecord)
	}
	rows := make([]models.RouteComment, 0, len(texts))
	seen := make(map[string]bool, len(texts))
	for _, text := range texts {
		c := models.NewRouteComment(routeID, text)
		if c.Text == "" || seen[c.Hash] {
			continue
		}
		seen[c.Hash] = true
		rows = append(rows, c)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "route_id"}, {Name: "comment_hash"}},
		DoNothing: true,
	}).Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("add comments to route %d: %w", routeID, res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *GormStore) ListAreas(ctx context.Context) ([]models.Area, error) {
	var areas []models.Area
	err := s.db.WithContext(ctx).Order("id").Find(&areas).Error
	return areas, err
}

func (s *GormStore) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	err := s.db.WithContext(ctx).Order("id").Find(&routes).Error
	return routes, err
}

func (s *GormStore) ListRouteImages(ctx context.Context) ([]models.RouteImage, error) {
	var images []models.RouteImage
	err := s.db.WithContext(ctx).Order("id").Find(&images).Error
	return images, err
}

func (s *GormStore) ListRouteDetails(ctx context.Context) ([]models.RouteDetail, error) {
	var details []models.RouteDetail
	err := s.db.WithContext(ctx).Order("id").Find(&details).Error
	return details, err
}

func (s *GormStore) ListRouteComments(ctx context.Context) ([]models.RouteComment, error) {
	var comments []models.RouteComment
	err := s.db.WithContext(ctx).Order("id").Find(&comments).Error
	return comments, err
}

func (s *GormStore) RoutesWithoutDetail(ctx context.Context, limit int) ([]models.Route, error) {
	var routes []models.Route
	described := s.db.Model(&models.RouteDetail{}).Select("route_id")
	q := s.db.WithContext(ctx).Where("id NOT IN (?)", described).Order("id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&routes).Error
	return routes, err
}

func (s *GormStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	for _, t := range []struct {
		model interface{}
		dst   *int64
	}{
		{&models.Area{}, &c.Areas},
		{&models.Route{}, &c.Routes},
		{&models.RouteImage{}, &c.Images},
		{&models.RouteDetail{}, &c.Details},
		{&models.RouteComment{}, &c.Comments},
	} {
		if err := db.Model(t.model).Count(t.dst).Error; err != nil {
			return Counts{}, err
		}
	}
	return c, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
