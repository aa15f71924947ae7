package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"despachante/internal/metrics"
	"despachante/internal/util"
	"despachante/pkg/catalog"
	"despachante/pkg/domain"
	"despachante/pkg/pdfcheck"
	"despachante/pkg/plate"
	"despachante/services/api/internal/payments"
)

// Document is an uploaded file as handed over by the HTTP layer.
type Document interface {
	io.Reader
	io.ReaderAt
	io.Seeker
	io.Closer
}

// Upload describes one file of a submission.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (Document, error)
}

// Submission is the input of upload-and-link.
type Submission struct {
	ServiceType     string
	ApplicantName   string
	PaymentMethod   string
	VehiclePlate    string
	VehicleNickname string
	Files           []Upload
}

// UploadError reports a file that could not be stored.
type UploadError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// SubmissionResult is the outcome of upload-and-link. Errors lists files
// that failed while the rest of the batch was stored.
type SubmissionResult struct {
	Request domain.ServiceRequest
	Links   []string
	Errors  []UploadError
}

// Services returns the service catalog.
func (a *App) Services() []catalog.Service {
	return catalog.All()
}

// ListServiceRequests returns the user's requests, newest first.
func (a *App) ListServiceRequests(ctx context.Context, userID string) ([]domain.ServiceRequest, error) {
	reqs, err := a.store.ListServiceRequests(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list service requests: %w", err)
	}
	return reqs, nil
}

// SubmitDocuments stores the PDFs and links them to the service request of
// (user, plate, service type), creating it as Pendente the first time.
// Resubmitting replaces the document list; the previous objects are removed.
func (a *App) SubmitDocuments(ctx context.Context, userID string, in Submission) (SubmissionResult, error) {
	sub, err := a.validateSubmission(in)
	if err != nil {
		return SubmissionResult{}, err
	}
	user, ok, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return SubmissionResult{}, ErrUserNotFound
	}
	logger := util.LoggerFromContext(ctx)

	stored, uploadErrs := a.storeDocuments(ctx, userID, sub.plate, in.Files)
	metrics.RecordUpload(sub.service.Name, len(stored), len(uploadErrs))
	if len(stored) == 0 {
		return SubmissionResult{Errors: uploadErrs}, ErrNoFilesStored
	}
	keys := make([]string, len(stored))
	links := make([]string, len(stored))
	for i, s := range stored {
		keys[i], links[i] = s.key, s.url
	}

	previous, hadPrevious, err := a.store.GetServiceRequest(ctx, userID, sub.plate, sub.service.Name)
	if err != nil {
		a.discardObjects(ctx, keys)
		return SubmissionResult{}, fmt.Errorf("fetch service request: %w", err)
	}
	now := a.now().UTC()
	saved, err := a.store.UpsertServiceRequest(ctx, domain.ServiceRequest{
		ID:              util.NewID(),
		UserID:          userID,
		ServiceType:     sub.service.Name,
		PaymentMethod:   sub.method,
		Status:          domain.StatusPending,
		RequestedAt:     now,
		DocumentURLs:    links,
		DocumentKeys:    keys,
		ApplicantName:   strings.TrimSpace(in.ApplicantName),
		VehiclePlate:    sub.plate,
		VehicleNickname: strings.TrimSpace(in.VehicleNickname),
		UpdatedAt:       now,
	})
	if err != nil {
		a.discardObjects(ctx, keys)
		return SubmissionResult{}, fmt.Errorf("save service request: %w", err)
	}
	if hadPrevious {
		a.discardObjects(ctx, supersededKeys(previous.DocumentKeys, keys))
	}

	saved = a.chargeIfNeeded(ctx, user, sub.service, saved)
	logger.Info("documents linked",
		"request_id", saved.ID,
		"service", saved.ServiceType,
		"stored", len(stored),
		"failed", len(uploadErrs),
	)
	return SubmissionResult{Request: saved, Links: links, Errors: uploadErrs}, nil
}

type validSubmission struct {
	service catalog.Service
	method  domain.PaymentMethod
	plate   string
}

// validateSubmission runs every check that does not touch storage.
func (a *App) validateSubmission(in Submission) (validSubmission, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"tipoServico", in.ServiceType},
		{"nomeCompleto", in.ApplicantName},
		{"formaPagamento", in.PaymentMethod},
		{"placaVeiculo", in.VehiclePlate},
		{"nomeVeiculo", in.VehicleNickname},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return validSubmission{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	if len(in.Files) == 0 {
		return validSubmission{}, ErrNoFiles
	}
	service, ok := catalog.Lookup(in.ServiceType)
	if !ok {
		return validSubmission{}, ErrUnknownService
	}
	method, ok := domain.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return validSubmission{}, ErrInvalidPaymentMethod
	}
	p, err := plate.Canonical(in.VehiclePlate)
	if err != nil {
		return validSubmission{}, ErrInvalidPlate
	}
	for _, f := range in.Files {
		if err := checkPDF(f); err != nil {
			return validSubmission{}, err
		}
	}
	return validSubmission{service: service, method: method, plate: p}, nil
}

func checkPDF(f Upload) error {
	if !pdfcheck.IsPDFContentType(f.ContentType) || f.Open == nil {
		return fmt.Errorf("%w: %s", ErrNotPDF, f.Filename)
	}
	doc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Filename, err)
	}
	defer doc.Close()
	if _, err := pdfcheck.Inspect(doc, f.Size); err != nil {
		return fmt.Errorf("%w: %s", ErrNotPDF, f.Filename)
	}
	return nil
}

type storedObject struct {
	key string
	url string
}

// storeDocuments uploads files concurrently. Results keep the input order;
// a failed file does not stop the others.
func (a *App) storeDocuments(ctx context.Context, userID, vehiclePlate string, files []Upload) ([]storedObject, []UploadError) {
	results := make([]storedObject, len(files))
	failures := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(a.uploadConcurrency)
	for i, f := range files {
		g.Go(func() error {
			key := objectKey(userID, vehiclePlate, f.Filename, a.now())
			obj, err := a.storeDocument(ctx, key, f)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = obj
			return nil
		})
	}
	_ = g.Wait()

	var stored []storedObject
	var uploadErrs []UploadError
	for i, f := range files {
		if failures[i] != nil {
			util.LoggerFromContext(ctx).Warn("document upload failed", "file", f.Filename, "err", failures[i])
			uploadErrs = append(uploadErrs, UploadError{File: f.Filename, Error: failures[i].Error()})
			continue
		}
		stored = append(stored, results[i])
	}
	return stored, uploadErrs
}

func (a *App) storeDocument(ctx context.Context, key string, f Upload) (storedObject, error) {
	doc, err := f.Open()
	if err != nil {
		return storedObject{}, fmt.Errorf("open file: %w", err)
	}
	defer doc.Close()
	if _, err := doc.Seek(0, io.SeekStart); err != nil {
		return storedObject{}, fmt.Errorf("rewind file: %w", err)
	}
	if err := a.objects.Put(ctx, key, doc, f.Size, pdfcheck.ContentType); err != nil {
		return storedObject{}, err
	}
	url, err := a.objects.URL(ctx, key)
	if err != nil {
		a.discardObjects(ctx, []string{key})
		return storedObject{}, err
	}
	return storedObject{key: key, url: url}, nil
}

// discardObjects deletes objects best-effort, also after ctx is done.
func (a *App) discardObjects(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := a.objects.Delete(ctx, key); err != nil {
			util.LoggerFromContext(ctx).Warn("object cleanup failed", "key", key, "err", err)
		}
	}
}

func (a *App) chargeIfNeeded(ctx context.Context, user domain.User, service catalog.Service, req domain.ServiceRequest) domain.ServiceRequest {
	if a.payments == nil || req.PaymentID != "" {
		return req
	}
	methodID, ok := providerMethod(req.PaymentMethod)
	if !ok {
		return req
	}
	res, err := a.payments.Create(ctx, payments.Charge{
		Reference:   req.ID,
		Description: service.Name + " - " + req.VehiclePlate,
		AmountCents: service.FeeCents,
		MethodID:    methodID,
		PayerEmail:  user.Email,
		PayerName:   req.ApplicantName,
	})
	metrics.RecordPayment(string(req.PaymentMethod), err == nil)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("payment charge failed", "request_id", req.ID, "err", err)
		return req
	}
	if err := a.store.SetPayment(ctx, req.ID, res.ID, res.Status); err != nil {
		util.LoggerFromContext(ctx).Error("save payment failed", "request_id", req.ID, "payment_id", res.ID, "err", err)
		return req
	}
	req.PaymentID, req.PaymentStatus = res.ID, res.Status
	return req
}

// providerMethod maps the methods charged at submission; cards are settled
// elsewhere and only recorded.
func providerMethod(m domain.PaymentMethod) (string, bool) {
	switch m {
	case domain.PaymentPix:
		return "pix", true
	case domain.PaymentBoleto:
		return "bolbradesco", true
	default:
		return "", false
	}
}

func objectKey(userID, vehiclePlate, filename string, now time.Time) string {
	name := sanitizeFilename(path.Base(strings.ReplaceAll(filename, "\\", "/")))
	if name == "" || name == "." {
		name = "documento.pdf"
	}
	unique := fmt.Sprintf("%d-%s-%s", now.UnixNano(), util.NewID()[:8], name)
	return path.Join("uploads", sanitizeFilename(userID), vehiclePlate, unique)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}

func supersededKeys(old, current []string) []string {
	keep := make(map[string]struct{}, len(current))
	for _, k := range current {
		keep[k] = struct{}{}
	}
	var out []string
	for _, k := range old {
		if _, ok := keep[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
