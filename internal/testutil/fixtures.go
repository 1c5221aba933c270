package testutil

import (
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/domain/inventory"
	"github.com/erp/chemstock/internal/domain/requisition"
	"github.com/erp/chemstock/internal/domain/shared"
)

var units = []string{"кг", "л", "т", "м3"}

// Faker is seeded so fixtures are reproducible across runs
var Faker = gofakeit.New(42)

// NewUser returns a user with the given role
func NewUser(role identity.Role) *identity.User {
	return &identity.User{
		ID:        int64(Faker.Number(1, 10000)),
		Username:  Faker.Username(),
		Email:     Faker.Email(),
		FirstName: Faker.FirstName(),
		LastName:  Faker.LastName(),
		Role:      role,
	}
}

// NewFacility returns a facility of type t
func NewFacility(t inventory.FacilityType) inventory.Facility {
	return inventory.Facility{
		ID:        int64(Faker.Number(1, 10000)),
		Name:      Faker.City() + " " + strconv.Itoa(Faker.Number(100, 999)),
		Type:      t,
		Location:  Faker.Street(),
		CreatedAt: shared.DateTime{Time: Faker.Date().Truncate(time.Second)},
	}
}

// NewChemical returns a reagent with a price of up to 5000
func NewChemical() inventory.Chemical {
	return inventory.Chemical{
		ID:                int64(Faker.Number(1, 10000)),
		Name:              Faker.ProductName(),
		UnitOfMeasurement: units[Faker.Number(0, len(units)-1)],
		Price:             decimal.NewFromFloat(Faker.Price(10, 5000)).Round(2),
		Description:       Faker.Sentence(6),
	}
}

// NewRequisition returns a requisition in status created by creator with
// one item per quantity.
func NewRequisition(status requisition.Status, creator *identity.User, quantities ...int64) *requisition.Requisition {
	req := &requisition.Requisition{
		ID:                 int64(Faker.Number(1, 10000)),
		Status:             status,
		TargetFacility:     shared.NewRef(int64(Faker.Number(1, 100))),
		TargetFacilityName: Faker.City(),
		RequiredDate:       shared.NewDate(time.Now().AddDate(0, 0, Faker.Number(1, 60))),
		Comment:            Faker.Sentence(4),
		CreatedBy:          &shared.Ref{ID: creator.ID, Name: creator.Username},
		CreatedByName:      creator.Username,
	}
	for i, q := range quantities {
		chem := NewChemical()
		req.Items = append(req.Items, requisition.Item{
			ID:           int64(i + 1),
			Chemical:     &shared.Ref{ID: chem.ID, Name: chem.Name},
			ChemicalName: chem.Name,
			Unit:         chem.UnitOfMeasurement,
			Quantity:     decimal.NewFromInt(q),
		})
	}
	return req
}
