package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turnotrack/shift-ops-api/internal/app/apperr"
	"github.com/turnotrack/shift-ops-api/internal/domain"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/clock"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/objectstore"
	"github.com/turnotrack/shift-ops-api/internal/ports/out/shiftrepo"
)

// MaxFileSize caps one evidence object at 8 MiB.
const MaxFileSize = 8 << 20

// Service handles shift evidence photos in two steps: a signed upload grant,
// then a finalize that verifies the uploaded object and records the row.
type Service struct {
	shifts  shiftrepo.Repository
	objects objectstore.Store
	clock   clock.Clock
}

func New(shifts shiftrepo.Repository, objects objectstore.Store, clk clock.Clock) *Service {
	return &Service{shifts: shifts, objects: objects, clock: clk}
}

type UploadGrant struct {
	UploadURL   string `json:"upload_url"`
	UploadToken string `json:"upload_token"`
	StoragePath string `json:"storage_path"`
}

// RequestUpload grants a signed upload for one evidence photo. The storage
// path embeds the owner, shift and type so Finalize can verify provenance
// from the path alone.
func (s *Service) RequestUpload(ctx context.Context, employee domain.UserID, shiftID domain.ShiftID, t domain.PhotoType) (UploadGrant, *apperr.Error) {
	if _, ae := s.ownedShift(ctx, employee, shiftID); ae != nil {
		return UploadGrant{}, ae
	}

	n, err := s.shifts.CountPhotos(ctx, shiftID, t)
	if err != nil {
		return UploadGrant{}, apperr.System("photo count failed", err)
	}
	if n > 0 {
		return UploadGrant{}, apperr.Business(http.StatusConflict, "evidence of this type already exists for the shift")
	}

	path := fmt.Sprintf("%s/%d/%s/%s.bin", employee, shiftID, t, uuid.NewString())
	grant, err := s.objects.CreateSignedUploadURL(ctx, path)
	if err != nil {
		return UploadGrant{}, apperr.System("signed upload failed", err)
	}
	return UploadGrant{UploadURL: grant.URL, UploadToken: grant.Token, StoragePath: grant.Path}, nil
}

type FinalizeInput struct {
	ShiftID     domain.ShiftID
	Type        domain.PhotoType
	StoragePath string

	Lat      float64
	Lng      float64
	Accuracy float64

	CapturedAt time.Time
}

type FinalizeResult struct {
	ShiftID     domain.ShiftID   `json:"shift_id"`
	Type        domain.PhotoType `json:"type"`
	StoragePath string           `json:"storage_path"`
	SHA256      string           `json:"sha256"`
	MIMEType    string           `json:"mime_type"`
	FileSize    int64            `json:"file_size"`
}

// FinalizeUpload verifies the uploaded object and records the evidence row.
// The content type comes from sniffing the object's magic bytes, never from
// anything the client declared.
func (s *Service) FinalizeUpload(ctx context.Context, employee domain.UserID, in FinalizeInput) (FinalizeResult, *apperr.Error) {
	if _, ae := s.ownedShift(ctx, employee, in.ShiftID); ae != nil {
		return FinalizeResult{}, ae
	}

	prefix := fmt.Sprintf("%s/%d/%s/", employee, in.ShiftID, in.Type)
	if !strings.HasPrefix(in.StoragePath, prefix) {
		return FinalizeResult{}, apperr.Validation(http.StatusUnprocessableEntity, "storage path does not match shift evidence slot")
	}

	data, err := s.objects.Download(ctx, in.StoragePath)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return FinalizeResult{}, apperr.Validation(http.StatusUnprocessableEntity, "object has not been uploaded")
		}
		return FinalizeResult{}, apperr.System("object download failed", err)
	}
	if len(data) == 0 || len(data) > MaxFileSize {
		return FinalizeResult{}, apperr.Validation(http.StatusUnprocessableEntity, "object size out of bounds").
			WithDetails(map[string]any{"max_bytes": MaxFileSize})
	}

	mime := http.DetectContentType(data)
	switch mime {
	case "image/jpeg", "image/png", "image/webp":
	default:
		return FinalizeResult{}, apperr.Validation(http.StatusUnprocessableEntity, "unsupported image format").
			WithDetails(map[string]any{"detected": mime})
	}

	sum := sha256.Sum256(data)
	photo := shiftrepo.Photo{
		ShiftID:     in.ShiftID,
		UserID:      employee,
		StoragePath: in.StoragePath,
		Type:        in.Type,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Accuracy:    in.Accuracy,
		SHA256:      hex.EncodeToString(sum[:]),
		MIMEType:    mime,
		FileSize:    int64(len(data)),
		CapturedAt:  in.CapturedAt,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.shifts.AddPhoto(ctx, photo); err != nil {
		if errors.Is(err, shiftrepo.ErrDuplicatePhoto) {
			return FinalizeResult{}, apperr.Business(http.StatusConflict, "evidence of this type already exists for the shift")
		}
		return FinalizeResult{}, apperr.System("photo record failed", err)
	}
	return FinalizeResult{
		ShiftID:     in.ShiftID,
		Type:        in.Type,
		StoragePath: in.StoragePath,
		SHA256:      photo.SHA256,
		MIMEType:    mime,
		FileSize:    photo.FileSize,
	}, nil
}

func (s *Service) ownedShift(ctx context.Context, employee domain.UserID, id domain.ShiftID) (shiftrepo.Shift, *apperr.Error) {
	shift, err := s.shifts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, shiftrepo.ErrNotFound) {
			return shiftrepo.Shift{}, apperr.Business(http.StatusNotFound, "shift not found")
		}
		return shiftrepo.Shift{}, apperr.System("shift lookup failed", err)
	}
	if shift.EmployeeID != employee {
		return shiftrepo.Shift{}, apperr.Forbidden("shift does not belong to caller")
	}
	return shift, nil
}
