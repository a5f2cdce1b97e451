package seeders

import (
	"errors"

	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/models"
	"github.com/campusbite/canteen/pkg/auth"
)

const demoPassword = "canteen123"

func init() {
	Register("users", seedUsers)
	Register("shops", seedShops)
}

var demoUsers = []models.User{
	{Name: "Canteen Admin", Email: "admin@campus.test", Role: models.RoleAdmin},
	{Name: "Ravi Kumar", Email: "ravi@campus.test", Role: models.RoleShopkeeper},
	{Name: "Asha Student", Email: "asha@campus.test", Role: models.RoleCustomer},
}

func seedUsers(db *gorm.DB) error {
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		return err
	}
	for _, u := range demoUsers {
		u.Password = hash
		if err := db.Where(models.User{Email: u.Email}).FirstOrCreate(&u).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedShops(db *gorm.DB) error {
	var owner models.User
	err := db.Where("email = ?", "ravi@campus.test").First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New("shopkeeper missing, run the users seeder first")
	}
	if err != nil {
		return err
	}

	shops := []models.Shop{
		{Name: "South Spice", Category: "South Indian", EstimatedWait: 10},
		{Name: "Chai Point", Category: "Beverages", EstimatedWait: 5},
		{Name: "Roll Corner", Category: "Snacks", EstimatedWait: 12},
	}
	for _, s := range shops {
		s.OwnerID = owner.ID
		if err := db.Where(models.Shop{Name: s.Name, OwnerID: owner.ID}).FirstOrCreate(&s).Error; err != nil {
			return err
		}
	}
	return nil
}
