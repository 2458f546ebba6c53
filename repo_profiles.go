package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ApplicantProfiles interface {
	repository.Repository[*ApplicantProfile]

	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*ApplicantProfile, error)
	GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*ApplicantProfile, error)
}

type applicantProfiles struct {
	repository.Repository[*ApplicantProfile]
	db *bun.DB
}

var _ ApplicantProfiles = (*applicantProfiles)(nil)

func NewApplicantProfilesRepository(db *bun.DB) ApplicantProfiles {
	repo := repository.NewRepository[*ApplicantProfile](db, repository.ModelHandlers[*ApplicantProfile]{
		NewRecord: func() *ApplicantProfile { return &ApplicantProfile{} },
		GetID: func(p *ApplicantProfile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *ApplicantProfile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &applicantProfiles{
		Repository: repo,
		db:         db,
	}
}

func (r *applicantProfiles) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*ApplicantProfile, error) {
	return r.GetByAccountIDTx(ctx, r.db, accountID)
}

func (r *applicantProfiles) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*ApplicantProfile, error) {
	record := &ApplicantProfile{}
	err := tx.NewSelect().
		Model(record).
		Relation("Account").
		Where("?TableAlias.account_id = ?", accountID.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

type HRProfiles interface {
	repository.Repository[*HRProfile]

	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*HRProfile, error)
	GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*HRProfile, error)
	ListWithAccounts(ctx context.Context) ([]*HRProfile, error)
	Remove(ctx context.Context, id uuid.UUID) error
	RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type hrProfiles struct {
	repository.Repository[*HRProfile]
	db *bun.DB
}

var _ HRProfiles = (*hrProfiles)(nil)

func NewHRProfilesRepository(db *bun.DB) HRProfiles {
	repo := repository.NewRepository[*HRProfile](db, repository.ModelHandlers[*HRProfile]{
		NewRecord: func() *HRProfile { return &HRProfile{} },
		GetID: func(p *HRProfile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *HRProfile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &hrProfiles{
		Repository: repo,
		db:         db,
	}
}

func (r *hrProfiles) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*HRProfile, error) {
	return r.GetByAccountIDTx(ctx, r.db, accountID)
}

func (r *hrProfiles) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*HRProfile, error) {
	record := &HRProfile{}
	err := tx.NewSelect().
		Model(record).
		Relation("Account").
		Where("?TableAlias.account_id = ?", accountID.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

// Remove hard deletes a recruiter profile
func (r *hrProfiles) Remove(ctx context.Context, id uuid.UUID) error {
	return r.RemoveTx(ctx, r.db, id)
}

func (r *hrProfiles) RemoveTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*HRProfile)(nil)).
		Where("id = ?", id.String()).
		Exec(ctx)
	return err
}

// ListWithAccounts returns every recruiter profile with its account loaded,
// newest first
func (r *hrProfiles) ListWithAccounts(ctx context.Context) ([]*HRProfile, error) {
	var records []*HRProfile
	err := r.db.NewSelect().
		Model(&records).
		Relation("Account").
		Order("hrp.created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}
