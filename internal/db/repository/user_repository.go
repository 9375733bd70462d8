package repository

import (
	"github.com/uptc-energia/backend/internal/db/models"
	"gorm.io/gorm"
)

// UserRepository defines operations for operator accounts
type UserRepository interface {
	Repository
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
}

type userRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *userRepository) Create(user *models.User) error {
	return r.handleError(r.GetDB().Create(user).Error)
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.GetDB().First(&user, id).Error; err != nil {
		return nil, r.handleError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.GetDB().Where("email = ?", email).First(&user).Error; err != nil {
		return nil, r.handleError(err)
	}
	return &user, nil
}

func (r *userRepository) Update(user *models.User) error {
	return r.handleError(r.GetDB().Save(user).Error)
}
