package report

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"gcx-supplier-go/models"

	"gorm.io/gorm"
)

// DocumentHash binds an application's identity to the server secret. It
// depends only on fields that never change after submission, so a report
// regenerated later carries the same hash.
func DocumentHash(id uint, trackingCode string, createdAt time.Time, secret string) string {
	payload := fmt.Sprintf("%d|%s|%d|%s", id, trackingCode, createdAt.UTC().UnixMicro(), secret)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerificationURL is the link encoded in the report's QR code.
func VerificationURL(baseURL string, id uint, hash string) string {
	q := url.Values{}
	q.Set("id", strconv.FormatUint(uint64(id), 10))
	q.Set("hash", hash)
	return baseURL + "/verify-document?" + q.Encode()
}

// Verifier answers the public "is this document genuine" question.
type Verifier struct {
	db     *gorm.DB
	secret string
}

func NewVerifier(db *gorm.DB, secret string) *Verifier {
	return &Verifier{db: db, secret: secret}
}

// Verify recomputes the hash for application id and compares it with the
// presented one. Unknown applications are simply not verified.
func (v *Verifier) Verify(ctx context.Context, id uint, hash string) (bool, error) {
	if id == 0 || len(hash) != sha256.Size*2 {
		return false, nil
	}
	var app models.SupplierApplication
	err := v.db.WithContext(ctx).Select("id, tracking_code, created_at").First(&app, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load application: %w", err)
	}
	want := DocumentHash(app.ID, app.TrackingCode, app.CreatedAt, v.secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(hash)) == 1, nil
}
