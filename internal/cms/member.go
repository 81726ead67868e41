package cms

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MemberRepository is a read-only lookup of author profiles. Members are
// managed outside this application.
type MemberRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewMemberRepository constructs a Gorm-backed member repository.
func NewMemberRepository(db *gorm.DB, logger *logrus.Logger) (*MemberRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &MemberRepository{db: db, logger: logger}, nil
}

// Get returns the member or nil when not found.
func (r *MemberRepository) Get(ctx context.Context, id uint) (*Member, error) {
	var member Member
	if err := r.db.WithContext(ctx).Take(&member, id).Error; err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"member_id": id}, err, "fetching member")
		return nil, eris.Wrapf(err, "fetching member %d", id)
	}

	return &member, nil
}

// List returns every member in insertion order.
func (r *MemberRepository) List(ctx context.Context) ([]Member, error) {
	var members []Member
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&members).Error; err != nil {
		r.logError(nil, err, "listing members")
		return nil, eris.Wrap(err, "listing members")
	}

	return members, nil
}

func (r *MemberRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
