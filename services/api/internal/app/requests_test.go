package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"despachante/pkg/domain"
	"despachante/pkg/storage"
	"despachante/pkg/store"
)

func segundaVia(files ...Upload) Submission {
	return Submission{
		ServiceType:     "Segunda Via",
		ApplicantName:   "Maria Silva",
		PaymentMethod:   "pix",
		VehiclePlate:    "abc1d23",
		VehicleNickname: "Carro",
		Files:           files,
	}
}

func TestSubmitDocumentsCreatesPendingRequest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := signUp(t, env.app, "maria@example.com")

	res, err := env.app.SubmitDocuments(ctx, user.ID, segundaVia(pdfUpload("crlv.pdf"), pdfUpload("rg.pdf")))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Request.Status != domain.StatusPending {
		t.Fatalf("expected Pendente, got %q", res.Request.Status)
	}
	if res.Request.VehiclePlate != "ABC1D23" {
		t.Fatalf("expected canonical plate, got %q", res.Request.VehiclePlate)
	}
	if res.Request.ServiceType != "Segunda Via" || res.Request.PaymentMethod != domain.PaymentPix {
		t.Fatalf("unexpected request: %+v", res.Request)
	}
	if len(res.Links) != 2 || len(res.Errors) != 0 {
		t.Fatalf("expected 2 links and no errors, got %v %v", res.Links, res.Errors)
	}
	if !strings.HasSuffix(res.Links[0], "crlv.pdf") || !strings.HasSuffix(res.Links[1], "rg.pdf") {
		t.Fatalf("links must keep the upload order: %v", res.Links)
	}
	if !strings.Contains(res.Links[0], "uploads/"+user.ID+"/ABC1D23/") {
		t.Fatalf("unexpected object key layout: %s", res.Links[0])
	}
	if env.objects.count() != 2 {
		t.Fatalf("expected 2 stored objects, got %d", env.objects.count())
	}
	if res.Request.RequestedAt.IsZero() {
		t.Fatalf("requested date must be set")
	}
}

func TestSubmitDocumentsTwiceKeepsOneRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := signUp(t, env.app, "maria@example.com")

	first, err := env.app.SubmitDocuments(ctx, user.ID, segundaVia(pdfUpload("a.pdf"), pdfUpload("b.pdf")))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	again := segundaVia(pdfUpload("c.pdf"))
	again.VehiclePlate = "ABC-1D23"
	second, err := env.app.SubmitDocuments(ctx, user.ID, again)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if second.Request.ID != first.Request.ID {
		t.Fatalf("expected the same request to be updated, got %q and %q", first.Request.ID, second.Request.ID)
	}
	if !second.Request.RequestedAt.Equal(first.Request.RequestedAt) {
		t.Fatalf("requested date must be kept on resubmission")
	}

	reqs, err := env.app.ListServiceRequests(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(reqs))
	}
	if len(reqs[0].DocumentURLs) != 1 || !strings.HasSuffix(reqs[0].DocumentURLs[0], "c.pdf") {
		t.Fatalf("expected documents replaced, got %v", reqs[0].DocumentURLs)
	}
	if env.objects.count() != 1 {
		t.Fatalf("superseded objects must be removed, %d left", env.objects.count())
	}
}

func TestSubmitDocumentsValidatesBeforeStorage(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := signUp(t, env.app, "maria@example.com")

	png := Upload{
		Filename:    "foto.png",
		ContentType: "image/png",
		Size:        4,
		Open:        func() (Document, error) { return pdfDoc{bytes.NewReader([]byte("\x89PNG"))}, nil },
	}
	fake := Upload{
		Filename:    "fake.pdf",
		ContentType: "application/pdf",
		Size:        9,
		Open:        func() (Document, error) { return pdfDoc{bytes.NewReader([]byte("not a pdf"))}, nil },
	}

	missing := segundaVia(pdfUpload("a.pdf"))
	missing.ApplicantName = " "
	missing.VehicleNickname = ""

	unknown := segundaVia(pdfUpload("a.pdf"))
	unknown.ServiceType = "Lavagem"

	badMethod := segundaVia(pdfUpload("a.pdf"))
	badMethod.PaymentMethod = "cheque"

	badPlate := segundaVia(pdfUpload("a.pdf"))
	badPlate.VehiclePlate = "12345"

	cases := []struct {
		name string
		in   Submission
		want error
	}{
		{"missing fields", missing, ErrMissingFields},
		{"no files", segundaVia(), ErrNoFiles},
		{"declared type", segundaVia(pdfUpload("a.pdf"), png), ErrNotPDF},
		{"content", segundaVia(fake), ErrNotPDF},
		{"unknown service", unknown, ErrUnknownService},
		{"payment method", badMethod, ErrInvalidPaymentMethod},
		{"plate", badPlate, ErrInvalidPlate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := env.app.SubmitDocuments(ctx, user.ID, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if env.objects.puts != 0 {
		t.Fatalf("rejected submissions must not touch storage, got %d puts", env.objects.puts)
	}
	reqs, _ := env.app.ListServiceRequests(ctx, user.ID)
	if len(reqs) != 0 {
		t.Fatalf("rejected submissions must not create records, got %d", len(reqs))
	}
}

func TestSubmitDocumentsMissingFieldsNamed(t *testing.T) {
	env := newTestEnv(t, nil)
	user := signUp(t, env.app, "maria@example.com")
	in := segundaVia(pdfUpload("a.pdf"))
	in.PaymentMethod = ""
	_, err := env.app.SubmitDocuments(context.Background(), user.ID, in)
	if err == nil || !strings.Contains(err.Error(), "formaPagamento") {
		t.Fatalf("expected the missing field to be named, got %v", err)
	}
}

func TestSubmitDocumentsUnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.app.SubmitDocuments(context.Background(), "ghost", segundaVia(pdfUpload("a.pdf")))
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if env.objects.puts != 0 {
		t.Fatalf("unknown user must not touch storage")
	}
}

func TestSubmitDocumentsPartialFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.objects.failPut = func(key string) bool { return strings.Contains(key, "broken") }
	user := signUp(t, env.app, "maria@example.com")

	res, err := env.app.SubmitDocuments(context.Background(), user.ID, segundaVia(pdfUpload("ok.pdf"), pdfUpload("broken.pdf")))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(res.Links) != 1 || !strings.HasSuffix(res.Links[0], "ok.pdf") {
		t.Fatalf("expected only the stored file linked, got %v", res.Links)
	}
	if len(res.Errors) != 1 || res.Errors[0].File != "broken.pdf" {
		t.Fatalf("expected the failed file reported, got %+v", res.Errors)
	}
	if len(res.Request.DocumentURLs) != 1 {
		t.Fatalf("record must only reference stored files: %v", res.Request.DocumentURLs)
	}
}

func TestSubmitDocumentsNothingStored(t *testing.T) {
	env := newTestEnv(t, nil)
	env.objects.failPut = func(string) bool { return true }
	user := signUp(t, env.app, "maria@example.com")

	res, err := env.app.SubmitDocuments(context.Background(), user.ID, segundaVia(pdfUpload("a.pdf"), pdfUpload("b.pdf")))
	if !errors.Is(err, ErrNoFilesStored) {
		t.Fatalf("expected ErrNoFilesStored, got %v", err)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected both failures reported, got %+v", res.Errors)
	}
	reqs, _ := env.app.ListServiceRequests(context.Background(), user.ID)
	if len(reqs) != 0 {
		t.Fatalf("no record may be created when nothing was stored")
	}
}

func TestSubmitDocumentsRemovesObjectsWhenSaveFails(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Store = failingUpsertStore{cfg.Store.(*store.MemoryStore)}
	})
	objects := env.objects
	user := signUp(t, env.app, "maria@example.com")

	if _, err := env.app.SubmitDocuments(context.Background(), user.ID, segundaVia(pdfUpload("a.pdf"))); err == nil {
		t.Fatalf("expected save failure")
	}
	if objects.puts != 1 {
		t.Fatalf("expected the file to be uploaded once, got %d", objects.puts)
	}
	if objects.count() != 0 {
		t.Fatalf("uploaded objects must be removed after a failed save, %d left", objects.count())
	}
}

func TestSubmitDocumentsChargesOnce(t *testing.T) {
	gw := &recordingGateway{}
	env := newTestEnv(t, func(cfg *Config) { cfg.Payments = gw })
	ctx := context.Background()
	user := signUp(t, env.app, "maria@example.com")

	res, err := env.app.SubmitDocuments(ctx, user.ID, segundaVia(pdfUpload("a.pdf")))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Request.PaymentID != "mp-1" || res.Request.PaymentStatus != "pending" {
		t.Fatalf("expected payment recorded, got %+v", res.Request)
	}
	if len(gw.charges) != 1 || gw.charges[0].MethodID != "pix" || gw.charges[0].PayerEmail != user.Email {
		t.Fatalf("unexpected charges: %+v", gw.charges)
	}
	if gw.charges[0].AmountCents <= 0 {
		t.Fatalf("charge must carry the service fee")
	}

	if _, err := env.app.SubmitDocuments(ctx, user.ID, segundaVia(pdfUpload("b.pdf"))); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if len(gw.charges) != 1 {
		t.Fatalf("resubmission must not charge again, got %d charges", len(gw.charges))
	}

	card := segundaVia(pdfUpload("c.pdf"))
	card.ServiceType = "Placa Mercosul"
	card.PaymentMethod = "Crédito"
	if _, err := env.app.SubmitDocuments(ctx, user.ID, card); err != nil {
		t.Fatalf("card submit: %v", err)
	}
	if len(gw.charges) != 1 {
		t.Fatalf("card payments are not charged at submission")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"crlv.pdf":               "crlv.pdf",
		"comprovante de res.pdf": "comprovante_de_res.pdf",
		"çã  &&  x.pdf":          "x.pdf",
		"../../etc":              ".._.._etc",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestObjectKeyWithDottedNameFitsLocalStore(t *testing.T) {
	objects, err := storage.NewLocalStore(t.TempDir(), "http://files.test/files")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	key := objectKey("u1", "ABC1D23", "laudo..final.pdf", time.Unix(1700000000, 0))
	if !strings.HasSuffix(key, "-laudo..final.pdf") {
		t.Fatalf("unexpected key %q", key)
	}
	if err := objects.Put(context.Background(), key, bytes.NewReader([]byte("%PDF-1.4")), 8, "application/pdf"); err != nil {
		t.Fatalf("put %q: %v", key, err)
	}
}
