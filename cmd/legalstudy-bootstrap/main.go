// Command legalstudy-bootstrap initializes the Legal Study System
// subsystems and reports readiness.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	app "github.com/kart-io/legalstudy/internal/legalstudy"
)

func main() {
	app.NewApp().Run()
}
