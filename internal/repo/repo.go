package repo

import (
	"github.com/srvnk/starsbot/internal/pg"
	gamerepo "github.com/srvnk/starsbot/internal/repo/game-repo"
	promorepo "github.com/srvnk/starsbot/internal/repo/promo-repo"
	settingsrepo "github.com/srvnk/starsbot/internal/repo/settings-repo"
	taskrepo "github.com/srvnk/starsbot/internal/repo/task-repo"
	userrepo "github.com/srvnk/starsbot/internal/repo/user-repo"
	withdrawalrepo "github.com/srvnk/starsbot/internal/repo/withdrawal-repo"
)

type Repositories struct {
	User       *userrepo.Repository
	Promo      *promorepo.Repository
	Task       *taskrepo.Repository
	Game       *gamerepo.Repository
	Withdrawal *withdrawalrepo.Repository
	Settings   *settingsrepo.Repository
}

func New(conn pg.Database) *Repositories {
	return &Repositories{
		User:       userrepo.New(conn),
		Promo:      promorepo.New(conn),
		Task:       taskrepo.New(conn),
		Game:       gamerepo.New(conn),
		Withdrawal: withdrawalrepo.New(conn),
		Settings:   settingsrepo.New(conn),
	}
}
