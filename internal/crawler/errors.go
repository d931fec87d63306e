package crawler

import "errors"

var (
	// ErrNoRoutesFound means a leaf area lists no routes, or an area
	// advertises zero routes below it. It ends an exploratory path.
	ErrNoRoutesFound = errors.New("no routes found")
	// ErrNoImagesFound means the chosen route has no photos. Discovery
	// restarts from the starting area; a build skips the route.
	ErrNoImagesFound = errors.New("no images found")
	// ErrCallBudgetExceeded means a discovery spent all its area steps.
	ErrCallBudgetExceeded = errors.New("call budget exceeded")
	// ErrNoRouteDiscovered is what callers of Discover see when the budget
	// runs out.
	ErrNoRouteDiscovered = errors.New("no route discovered")
)
