package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"despachante/pkg/apiclient"
	"despachante/pkg/catalog"
	"despachante/pkg/cpf"
	"despachante/pkg/domain"
	"despachante/pkg/plate"
)

var (
	ErrUnknownService = errors.New("serviço desconhecido")
	ErrServiceLocked  = errors.New("o serviço já foi escolhido; cancele para trocar")
	ErrWrongStep      = errors.New("etapa fora de ordem")
	ErrIncomplete     = errors.New("preencha todas as etapas antes de enviar")
)

// ValidationError blocks advancing past a step.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Step is the position in the request flow.
type Step int

const (
	StepSelectService Step = iota
	StepApplicant
	StepDocuments
	StepPayment
)

func (s Step) String() string {
	switch s {
	case StepSelectService:
		return "select_service"
	case StepApplicant:
		return "applicant"
	case StepDocuments:
		return "documents"
	case StepPayment:
		return "payment"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Submitter sends the final request. *apiclient.Client implements it.
type Submitter interface {
	UploadPDFs(ctx context.Context, token string, up apiclient.UploadRequest) (apiclient.UploadResult, error)
}

// TokenSource yields the session token. *apiclient.Session implements it.
type TokenSource interface {
	Token() (string, error)
}

// Opener reads a picked document.
type Opener func(Document) (io.ReadCloser, error)

// OpenFile treats Document.URI as a local path.
func OpenFile(d Document) (io.ReadCloser, error) {
	return os.Open(d.URI)
}

// Flow walks one user through the steps. It is not safe for concurrent use;
// the screens drive it from a single goroutine.
type Flow struct {
	holder  *Holder
	step    Step
	client  Submitter
	session TokenSource
	open    Opener
}

// New builds a flow over an empty holder. A nil open reads local files.
func New(client Submitter, session TokenSource, open Opener) *Flow {
	if open == nil {
		open = OpenFile
	}
	return &Flow{holder: &Holder{}, client: client, session: session, open: open}
}

func (f *Flow) Step() Step { return f.step }

func (f *Flow) State() State { return f.holder.Get() }

// SelectService sets the service type. Once chosen it only changes after
// Cancel or a successful Submit.
func (f *Flow) SelectService(name string) error {
	if f.step != StepSelectService {
		return ErrWrongStep
	}
	svc, ok := catalog.Lookup(name)
	if !ok {
		return ErrUnknownService
	}
	if current := f.holder.Get().ServiceType; current != "" && current != svc.Name {
		return ErrServiceLocked
	}
	f.holder.Merge(Patch{ServiceType: &svc.Name})
	f.step = StepApplicant
	return nil
}

// RequiredDocuments lists the documents of the chosen service.
func (f *Flow) RequiredDocuments() []string {
	return catalog.RequiredDocuments(f.holder.Get().ServiceType)
}

// SetApplicant records who applies and for which vehicle. The plate is
// formatted the same way the input field formats it.
func (f *Flow) SetApplicant(name, plateInput, nickname string) error {
	if f.step != StepApplicant {
		return ErrWrongStep
	}
	name, nickname = strings.TrimSpace(name), strings.TrimSpace(nickname)
	p := plate.Format(plateInput)
	switch {
	case name == "":
		return &ValidationError{Field: "nomeCompleto", Message: "informe o nome completo"}
	case p == "":
		return &ValidationError{Field: "placaVeiculo", Message: "informe a placa do veículo"}
	case !plate.Valid(p):
		return &ValidationError{Field: "placaVeiculo", Message: "placa incompleta"}
	case nickname == "":
		return &ValidationError{Field: "nomeVeiculo", Message: "informe o nome do veículo"}
	}
	f.holder.Merge(Patch{ApplicantName: &name, VehiclePlate: &p, VehicleNickname: &nickname})
	f.step = StepDocuments
	return nil
}

func (f *Flow) SetDocuments(docs []Document) error {
	if f.step != StepDocuments {
		return ErrWrongStep
	}
	if len(docs) == 0 {
		return &ValidationError{Field: "pdfFiles", Message: "selecione ao menos um documento"}
	}
	for _, d := range docs {
		if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.URI) == "" {
			return &ValidationError{Field: "pdfFiles", Message: "documento inválido"}
		}
	}
	f.holder.Merge(Patch{Documents: docs})
	f.step = StepPayment
	return nil
}

// SetPayment records the payer CPF and payment method. The flow stays on
// the payment step until Submit.
func (f *Flow) SetPayment(taxIDInput, method string) error {
	if f.step != StepPayment {
		return ErrWrongStep
	}
	taxID := cpf.Normalize(taxIDInput)
	if !cpf.Valid(taxID) {
		return &ValidationError{Field: "cpf", Message: "CPF inválido"}
	}
	m, ok := domain.ParsePaymentMethod(method)
	if !ok {
		return &ValidationError{Field: "formaPagamento", Message: "escolha a forma de pagamento"}
	}
	pm := string(m)
	f.holder.Merge(Patch{TaxID: &taxID, PaymentMethod: &pm})
	return nil
}

// Back moves one step back keeping everything entered.
func (f *Flow) Back() {
	if f.step > StepSelectService {
		f.step--
	}
}

// Cancel discards the request and returns to service selection.
func (f *Flow) Cancel() {
	f.holder.Reset()
	f.step = StepSelectService
}

// Submit uploads the documents with every field gathered. On success the
// flow is reset; on failure the state is kept so the call can be retried.
func (f *Flow) Submit(ctx context.Context) (apiclient.UploadResult, error) {
	if f.step != StepPayment {
		return apiclient.UploadResult{}, ErrWrongStep
	}
	if f.session == nil {
		return apiclient.UploadResult{}, apiclient.ErrNoSession
	}
	token, err := f.session.Token()
	if err != nil {
		return apiclient.UploadResult{}, err
	}
	f.holder.Merge(Patch{AuthToken: &token})
	st := f.holder.Get()
	if missing := missingGroups(st); len(missing) > 0 {
		return apiclient.UploadResult{}, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(missing, ", "))
	}

	files := make([]apiclient.File, 0, len(st.Documents))
	for _, d := range st.Documents {
		rc, err := f.open(d)
		if err != nil {
			return apiclient.UploadResult{}, fmt.Errorf("open %s: %w", d.Name, err)
		}
		defer rc.Close()
		files = append(files, apiclient.File{Name: d.Name, Content: rc})
	}
	res, err := f.client.UploadPDFs(ctx, st.AuthToken, apiclient.UploadRequest{
		ServiceType:     st.ServiceType,
		ApplicantName:   st.ApplicantName,
		PaymentMethod:   st.PaymentMethod,
		VehiclePlate:    st.VehiclePlate,
		VehicleNickname: st.VehicleNickname,
		Files:           files,
	})
	if err != nil {
		return apiclient.UploadResult{}, err
	}
	f.Cancel()
	return res, nil
}

func missingGroups(st State) []string {
	var missing []string
	if st.ServiceType == "" {
		missing = append(missing, "serviço")
	}
	if st.ApplicantName == "" {
		missing = append(missing, "solicitante")
	}
	if st.VehiclePlate == "" || st.VehicleNickname == "" {
		missing = append(missing, "veículo")
	}
	if len(st.Documents) == 0 {
		missing = append(missing, "documentos")
	}
	if st.TaxID == "" || st.PaymentMethod == "" {
		missing = append(missing, "pagamento")
	}
	if st.AuthToken == "" {
		missing = append(missing, "sessão")
	}
	return missing
}
