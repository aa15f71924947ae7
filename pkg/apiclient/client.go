// Package apiclient calls the despachante API over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"despachante/pkg/catalog"
	"despachante/pkg/domain"
)

// DefaultTimeout bounds every call, uploads included.
const DefaultTimeout = 60 * time.Second

// Client calls the API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents an API error response.
type APIError struct {
	Status  int
	Message string
	// UploadErrors is set when an upload failed for every file.
	UploadErrors []UploadError
}

func (e *APIError) Error() string {
	return e.Message
}

// UploadError reports a file the API could not store.
type UploadError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// NewClient constructs an API client with DefaultTimeout.
func NewClient(baseURL string) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: DefaultTimeout})
}

// NewClientWithHTTP uses hc for every request.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: hc}
}

// Profile is what /api/user-data returns.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ProfileUpdate changes the non-nil fields.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// File is one document of an upload.
type File struct {
	Name    string
	Content io.Reader
}

// UploadRequest is the multipart body of /api/upload-pdfs.
type UploadRequest struct {
	ServiceType     string
	ApplicantName   string
	PaymentMethod   string
	VehiclePlate    string
	VehicleNickname string
	Files           []File
}

// UploadResult is a successful upload. Errors lists files that failed while
// the rest were stored.
type UploadResult struct {
	Message string        `json:"message"`
	Links   []string      `json:"pdfLinks"`
	Errors  []UploadError `json:"uploadErrors"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type recoveryResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "senha": password}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("login response without token")
	}
	return resp.Token, nil
}

func (c *Client) SignUp(ctx context.Context, name, email, password string) error {
	body := map[string]string{"nome": name, "email": email, "senha": password}
	return c.doJSON(ctx, http.MethodPost, "/api/signup", "", body, nil)
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/logout", token, nil, nil)
}

func (c *Client) UserData(ctx context.Context, token string) (Profile, error) {
	var p Profile
	if err := c.doJSON(ctx, http.MethodGet, "/api/user-data", token, nil, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (c *Client) UpdateUser(ctx context.Context, token string, upd ProfileUpdate) error {
	return c.doJSON(ctx, http.MethodPut, "/api/update-user", token, upd, nil)
}

func (c *Client) Vehicles(ctx context.Context, token string) ([]domain.Vehicle, error) {
	var resp struct {
		Vehicles []domain.Vehicle `json:"vehicles"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/veiculos", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Vehicles, nil
}

func (c *Client) AddVehicle(ctx context.Context, token, plate, nickname string) (domain.Vehicle, error) {
	var resp struct {
		Vehicle domain.Vehicle `json:"vehicle"`
	}
	body := map[string]string{"placa": plate, "nome": nickname}
	if err := c.doJSON(ctx, http.MethodPost, "/api/add-veiculo", token, body, &resp); err != nil {
		return domain.Vehicle{}, err
	}
	return resp.Vehicle, nil
}

func (c *Client) DeleteVehicle(ctx context.Context, token, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/delete-veiculo/"+url.PathEscape(id), token, nil, nil)
}

// Services returns the service catalog.
func (c *Client) Services(ctx context.Context) ([]catalog.Service, error) {
	var resp struct {
		Services []catalog.Service `json:"servicos"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/servicos", "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// MyServices lists the user's service requests.
func (c *Client) MyServices(ctx context.Context, token string) ([]domain.ServiceRequest, error) {
	var resp struct {
		Services []domain.ServiceRequest `json:"servicos"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/meus-servicos", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Services, nil
}

// UploadPDFs sends every file as application/pdf under pdfFiles[].
func (c *Client) UploadPDFs(ctx context.Context, token string, up UploadRequest) (UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := [][2]string{
		{"tipoServico", up.ServiceType},
		{"nomeCompleto", up.ApplicantName},
		{"formaPagamento", up.PaymentMethod},
		{"placaVeiculo", up.VehiclePlate},
		{"nomeVeiculo", up.VehicleNickname},
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return UploadResult{}, err
		}
	}
	for _, f := range up.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="pdfFiles[]"; filename=%q`, f.Name))
		h.Set("Content-Type", "application/pdf")
		part, err := writer.CreatePart(h)
		if err != nil {
			return UploadResult{}, err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return UploadResult{}, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload-pdfs", body)
	if err != nil {
		return UploadResult{}, err
	}
	addAuthHeader(req, token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var res UploadResult
	if err := c.do(req, &res); err != nil {
		return UploadResult{}, err
	}
	return res, nil
}

func (c *Client) SendPIN(ctx context.Context, email string) error {
	return c.recovery(ctx, "/api/send-pin", map[string]string{"email": email})
}

func (c *Client) ValidatePIN(ctx context.Context, email, pin string) error {
	return c.recovery(ctx, "/api/validate-pin", map[string]string{"email": email, "pin": pin})
}

func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) error {
	return c.recovery(ctx, "/api/reset-password", map[string]string{"email": email, "newPassword": newPassword})
}

func (c *Client) recovery(ctx context.Context, path string, body any) error {
	var resp recoveryResponse
	if err := c.doJSON(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{Status: http.StatusOK, Message: resp.Message}
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(in); err != nil {
			return err
		}
		body = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	addAuthHeader(req, token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error        string        `json:"error"`
			Message      string        `json:"message"`
			UploadErrors []UploadError `json:"uploadErrors"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&errResp)
		msg := errResp.Error
		if msg == "" {
			msg = errResp.Message
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg, UploadErrors: errResp.UploadErrors}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

func addAuthHeader(req *http.Request, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}
