package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/mindnote/internal/client/client"
	"github.com/dmitrijs2005/mindnote/internal/client/services"
	"github.com/dmitrijs2005/mindnote/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) askCredentials(args []string) (string, []byte, error) {
	var userName string
	if len(args) > 0 {
		userName = args[0]
	} else {
		var err error
		userName, err = getSimpleText(a.reader, "Username", a.out)
		if err != nil {
			return "", nil, err
		}
	}
	if userName == "" {
		return "", nil, errors.New("username is required")
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return userName, password, nil
}

// Register creates an account on the server. It does not log in.
func (a *App) Register(ctx context.Context, args []string) error {
	userName, password, err := a.askCredentials(args)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, userName, password); err != nil {
		return err
	}
	a.printf("Registered %s, now type 'login'.\n", userName)
	return nil
}

// Login tries the server first and falls back to the cached credentials
// when it is unreachable. After an online login local data is reconciled
// with the account and synced.
func (a *App) Login(ctx context.Context, args []string) error {
	userName, password, err := a.askCredentials(args)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	sess, err := a.auth.OnlineLogin(ctx, userName, password)
	if err != nil {
		if !errors.Is(err, client.ErrUnavailable) {
			return err
		}
		a.printf("Server unavailable, trying offline login...\n")
		sess, err = a.auth.OfflineLogin(ctx, userName, password)
		if err != nil {
			a.setMode(ctx, ModeDisabled)
			return err
		}
		a.setUser(sess.Username)
		a.setMode(ctx, ModeOffline)
		a.printf("Logged in offline as %s; changes will sync when the server is back.\n", sess.Username)
		return nil
	}

	a.setUser(sess.Username)
	a.setMode(ctx, ModeOnline)
	a.printf("Logged in as %s.\n", sess.Username)

	rep, err := a.sync.AfterLogin(ctx, sess)
	if err != nil {
		a.logger.Warn(ctx, "initial sync failed", "error", err)
		a.printf("Initial sync failed: %v\n", err)
		return nil
	}
	a.printReport(rep)
	return nil
}

// Logout forgets the session tokens. Workspaces stay on the device.
func (a *App) Logout(ctx context.Context, _ []string) error {
	if !a.isLoggedIn() {
		return ErrNotLoggedIn
	}
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	a.setUser("")
	a.setMode(ctx, ModeGuest)
	a.printf("Logged out. Notes stay on this device.\n")
	return nil
}

func (a *App) printReport(rep *services.Report) {
	if rep == nil {
		return
	}
	a.printf("Synced: %d pushed, %d pulled, %d conflicts, %d uploaded (version %d)\n",
		rep.Pushed, rep.Pulled, rep.Conflicts, rep.Uploaded, rep.Version)
}
