package cli

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"

	appidentity "github.com/erp/chemstock/internal/application/identity"
	"github.com/erp/chemstock/internal/infrastructure/session"
)

func init() {
	register(
		&command{path: "login", summary: "Sign in and store the session", setup: loginCommand},
		&command{path: "logout", summary: "Clear the stored session", setup: logoutCommand},
		&command{path: "whoami", summary: "Show the signed-in user", setup: whoamiCommand},
		&command{path: "version", summary: "Show version information", offline: true, setup: versionCommand},
	)
}

func loginCommand(fs *pflag.FlagSet) runFunc {
	var username, password string
	var passwordStdin bool
	fs.StringVarP(&username, "username", "u", "", "Username")
	fs.StringVarP(&password, "password", "p", "", "Password (prefer --password-stdin)")
	fs.BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return func(ctx context.Context, a *App, args []string) error {
		var err error
		if username == "" {
			if username, err = a.prompt("Username: "); err != nil {
				return err
			}
		}
		if password == "" {
			label := "Password: "
			if passwordStdin {
				label = ""
			}
			if password, err = a.prompt(label); err != nil {
				return err
			}
		}

		res, err := a.auth.Login(ctx, appidentity.LoginRequest{Username: username, Password: password})
		if err != nil {
			return err
		}
		u := res.User
		return a.out.Print(u, func(t *Table) {
			t.Add(fmt.Sprintf("Logged in as %s (%s)", u.FullName(), u.Role.Label()))
		})
	}
}

func logoutCommand(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := a.auth.Logout(ctx); err != nil {
			return err
		}
		a.out.Message("Logged out.")
		return nil
	}
}

type whoami struct {
	ID         int64      `json:"id"`
	Username   string     `json:"username"`
	FullName   string     `json:"full_name"`
	Role       string     `json:"role"`
	FacilityID int64      `json:"facility_id,omitempty"`
	Facility   string     `json:"facility,omitempty"`
	ExpiresAt  *time.Time `json:"token_expires_at,omitempty"`
}

func whoamiCommand(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		u, err := a.viewer(ctx)
		if err != nil {
			return err
		}
		info := whoami{
			ID:         u.ID,
			Username:   u.Username,
			FullName:   u.FullName(),
			Role:       string(u.Role),
			FacilityID: u.FacilityID(),
			Facility:   u.RelatedFacilityName,
		}

		token, err := a.session.AccessToken(ctx)
		if err != nil {
			return err
		}
		if claims, err := session.Claims(token); err == nil {
			exp := claims.ExpiresAt()
			info.ExpiresAt = &exp
		}

		return a.out.Print(info, func(t *Table) {
			t.Add("Username", u.Username)
			t.Add("Name", u.FullName())
			t.Add("Role", u.Role.Label())
			if info.FacilityID > 0 {
				t.Add("Facility", orDash(info.Facility)+fmt.Sprintf(" (#%d)", info.FacilityID))
			}
			if info.ExpiresAt != nil {
				state := "valid for " + info.ExpiresAt.Sub(a.now()).Round(time.Second).String()
				if a.now().After(*info.ExpiresAt) {
					state = "expired, renewed on next request"
				}
				t.Add("Access token", state)
			}
		})
	}
}

func versionCommand(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		fmt.Fprintf(a.out.w, "chemctl %s\n", Version)
		fmt.Fprintf(a.out.w, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(a.out.w, "  Git commit: %s\n", GitCommit)
		fmt.Fprintf(a.out.w, "  Go version: %s\n", runtime.Version())
		return nil
	}
}

// prompt prints label on stderr and reads one line from stdin
func (a *App) prompt(label string) (string, error) {
	if label != "" {
		fmt.Fprint(a.stderr, label)
	}
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
