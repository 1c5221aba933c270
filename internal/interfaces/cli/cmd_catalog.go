package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"

	appidentity "github.com/erp/chemstock/internal/application/identity"
	appinventory "github.com/erp/chemstock/internal/application/inventory"
	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/shared"
)

func init() {
	register(
		&command{path: "facilities list", summary: "List facilities", setup: facilitiesList},
		&command{path: "facilities get", args: "<id>", summary: "Show a facility", setup: facilitiesGet},
		&command{path: "facilities create", summary: "Create a facility", setup: facilitiesSave(false)},
		&command{path: "facilities update", args: "<id>", summary: "Update a facility", setup: facilitiesSave(true)},
		&command{path: "facilities delete", args: "<id>", summary: "Delete a facility", setup: facilitiesDelete},

		&command{path: "chemicals list", summary: "List chemicals", setup: chemicalsList},
		&command{path: "chemicals get", args: "<id>", summary: "Show a chemical", setup: chemicalsGet},
		&command{path: "chemicals create", summary: "Create a chemical", setup: chemicalsSave(false)},
		&command{path: "chemicals update", args: "<id>", summary: "Update a chemical", setup: chemicalsSave(true)},
		&command{path: "chemicals delete", args: "<id>", summary: "Delete a chemical", setup: chemicalsDelete},

		&command{path: "users list", summary: "List users", setup: usersList},
		&command{path: "users get", args: "<id>", summary: "Show a user", setup: usersGet},
		&command{path: "users create", summary: "Create a user", setup: usersSave(false)},
		&command{path: "users update", args: "<id>", summary: "Update a user", setup: usersSave(true)},
		&command{path: "users delete", args: "<id>", summary: "Delete a user", setup: usersDelete},
	)
}

func facilityTable(facilities ...inventory.Facility) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"ID", "NAME", "TYPE", "LOCATION"}
		for _, f := range facilities {
			t.Add(strconv.FormatInt(f.ID, 10), f.Name, f.Type.Label(), orDash(f.Location))
		}
	}
}

func facilitiesList(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		list, err := a.facilities.List(ctx)
		if err != nil {
			return err
		}
		return a.out.Print(list, facilityTable(list...))
	}
}

func facilitiesGet(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "a facility id"); err != nil {
			return err
		}
		id, err := parseID(args[0], "id")
		if err != nil {
			return err
		}
		f, err := a.facilities.Get(ctx, id)
		if err != nil {
			return err
		}
		return a.out.Print(f, facilityTable(*f))
	}
}

func facilitiesSave(update bool) func(fs *pflag.FlagSet) runFunc {
	return func(fs *pflag.FlagSet) runFunc {
		var req appinventory.FacilityRequest
		var kind string
		fs.StringVar(&req.Name, "name", "", "Facility name")
		fs.StringVar(&kind, "type", string(inventory.FacilityTypeWarehouse), "Type: warehouse, well, other")
		fs.StringVar(&req.Location, "location", "", "Location")

		return func(ctx context.Context, a *App, args []string) error {
			req.Type = inventory.FacilityType(kind)
			if !update {
				f, err := a.facilities.Create(ctx, req)
				if err != nil {
					return err
				}
				return a.out.Print(f, facilityTable(*f))
			}

			if err := argCount(args, 1, "a facility id"); err != nil {
				return err
			}
			id, err := parseID(args[0], "id")
			if err != nil {
				return err
			}
			current, err := a.facilities.Get(ctx, id)
			if err != nil {
				return err
			}
			merged := appinventory.FacilityRequest{Name: current.Name, Type: current.Type, Location: current.Location}
			if fs.Changed("name") {
				merged.Name = req.Name
			}
			if fs.Changed("type") {
				merged.Type = req.Type
			}
			if fs.Changed("location") {
				merged.Location = req.Location
			}
			f, err := a.facilities.Update(ctx, id, merged)
			if err != nil {
				return err
			}
			return a.out.Print(f, facilityTable(*f))
		}
	}
}

func facilitiesDelete(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "a facility id"); err != nil {
			return err
		}
		id, err := parseID(args[0], "id")
		if err != nil {
			return err
		}
		if err := a.facilities.Delete(ctx, id); err != nil {
			return err
		}
		a.out.Message("Facility %d deleted.", id)
		return nil
	}
}

func chemicalTable(p *Printer, chemicals ...inventory.Chemical) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"ID", "NAME", "UNIT", "PRICE", "DESCRIPTION"}
		for _, c := range chemicals {
			t.Add(strconv.FormatInt(c.ID, 10), c.Name, c.UnitOfMeasurement, p.Money(c.Price), orDash(c.Description))
		}
	}
}

func chemicalsList(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		list, err := a.chemicals.List(ctx)
		if err != nil {
			return err
		}
		return a.out.Print(list, chemicalTable(a.out, list...))
	}
}

func chemicalsGet(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "a chemical id"); err != nil {
			return err
		}
		id, err := parseID(args[0], "id")
		if err != nil {
			return err
		}
		c, err := a.chemicals.Get(ctx, id)
		if err != nil {
			return err
		}
		return a.out.Print(c, chemicalTable(a.out, *c))
	}
}

func chemicalsSave(update bool) func(fs *pflag.FlagSet) runFunc {
	return func(fs *pflag.FlagSet) runFunc {
		var req appinventory.ChemicalRequest
		var price string
		fs.StringVar(&req.Name, "name", "", "Chemical name")
		fs.StringVar(&req.UnitOfMeasurement, "unit", "", "Unit of measurement, e.g. кг")
		fs.StringVar(&price, "price", "0", "Price per unit")
		fs.StringVar(&req.Description, "description", "", "Description")

		return func(ctx context.Context, a *App, args []string) error {
			p, err := parseQuantity(price, "price")
			if err != nil {
				return err
			}
			req.Price = p

			if !update {
				c, err := a.chemicals.Create(ctx, req)
				if err != nil {
					return err
				}
				return a.out.Print(c, chemicalTable(a.out, *c))
			}

			if err := argCount(args, 1, "a chemical id"); err != nil {
				return err
			}
			id, err := parseID(args[0], "id")
			if err != nil {
				return err
			}
			current, err := a.chemicals.Get(ctx, id)
			if err != nil {
				return err
			}
			merged := appinventory.ChemicalRequest{
				Name:              current.Name,
				UnitOfMeasurement: current.UnitOfMeasurement,
				Price:             current.Price,
				Description:       current.Description,
			}
			if fs.Changed("name") {
				merged.Name = req.Name
			}
			if fs.Changed("unit") {
				merged.UnitOfMeasurement = req.UnitOfMeasurement
			}
			if fs.Changed("price") {
				merged.Price = req.Price
			}
			if fs.Changed("description") {
				merged.Description = req.Description
			}
			c, err := a.chemicals.Update(ctx, id, merged)
			if err != nil {
				return err
			}
			return a.out.Print(c, chemicalTable(a.out, *c))
		}
	}
}

func chemicalsDelete(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "a chemical id"); err != nil {
			return err
		}
		id, err := parseID(args[0], "id")
		if err != nil {
			return err
		}
		if err := a.chemicals.Delete(ctx, id); err != nil {
			return err
		}
		a.out.Message("Chemical %d deleted.", id)
		return nil
	}
}

func userTable(users ...identity.User) func(t *Table) {
	return func(t *Table) {
		t.Header = []string{"ID", "USERNAME", "NAME", "EMAIL", "ROLE", "FACILITY"}
		for i := range users {
			u := &users[i]
			facility := u.RelatedFacilityName
			if facility == "" && u.RelatedFacility != nil {
				facility = u.RelatedFacility.String()
			}
			t.Add(strconv.FormatInt(u.ID, 10), u.Username, u.FullName(), orDash(u.Email), u.Role.Label(), orDash(facility))
		}
	}
}

func usersList(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		list, err := a.users.List(ctx)
		if err != nil {
			return err
		}
		return a.out.Print(list, userTable(list...))
	}
}

// findUser looks a user up in the list, the API has no detail endpoint
func findUser(ctx context.Context, a *App, arg string) (*identity.User, error) {
	id, err := parseID(arg, "id")
	if err != nil {
		return nil, err
	}
	list, err := a.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, shared.NewDomainError(shared.ErrNotFound.Code, fmt.Sprintf("user %d not found", id))
}

func usersGet(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "a user id"); err != nil {
			return err
		}
		u, err := findUser(ctx, a, args[0])
		if err != nil {
			return err
		}
		return a.out.Print(u, userTable(*u))
	}
}

func usersSave(update bool) func(fs *pflag.FlagSet) runFunc {
	return func(fs *pflag.FlagSet) runFunc {
		var username, email, password, role string
		var facility int64
		fs.StringVar(&username, "username", "", "Login name")
		fs.StringVar(&email, "email", "", "E-mail")
		fs.StringVar(&password, "password", "", "Password, kept unchanged on update when empty")
		fs.StringVar(&role, "role", string(identity.RoleEngineer), "Role: admin, logistician, engineer")
		fs.Int64Var(&facility, "facility", 0, "Facility of an engineer")

		return func(ctx context.Context, a *App, args []string) error {
			if !update {
				u, err := a.users.Create(ctx, appidentity.CreateUserRequest{
					Username:        username,
					Email:           email,
					Password:        password,
					Role:            identity.Role(role),
					RelatedFacility: optionalID(facility),
				})
				if err != nil {
					return err
				}
				return a.out.Print(u, userTable(*u))
			}

			if err := argCount(args, 1, "a user id"); err != nil {
				return err
			}
			current, err := findUser(ctx, a, args[0])
			if err != nil {
				return err
			}
			req := appidentity.UpdateUserRequest{
				Username:        current.Username,
				Email:           current.Email,
				Password:        password,
				Role:            current.Role,
				RelatedFacility: optionalID(current.FacilityID()),
			}
			if fs.Changed("username") {
				req.Username = username
			}
			if fs.Changed("email") {
				req.Email = email
			}
			if fs.Changed("role") {
				req.Role = identity.Role(role)
			}
			if fs.Changed("facility") {
				req.RelatedFacility = optionalID(facility)
			}
			u, err := a.users.Update(ctx, current.ID, req)
			if err != nil {
				return err
			}
			return a.out.Print(u, userTable(*u))
		}
	}
}

func usersDelete(fs *pflag.FlagSet) runFunc {
	return func(ctx context.Context, a *App, args []string) error {
		if err := argCount(args, 1, "a user id"); err != nil {
			return err
		}
		id, err := parseID(args[0], "id")
		if err != nil {
			return err
		}
		if err := a.users.Delete(ctx, id); err != nil {
			return err
		}
		a.out.Message("User %d deleted.", id)
		return nil
	}
}
