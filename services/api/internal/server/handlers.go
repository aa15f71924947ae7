package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"despachante/pkg/domain"
	"despachante/pkg/store"
	"despachante/services/api/internal/app"
)

type signupRequest struct {
	Name     string `json:"nome"`
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type loginResponse struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

type addVehicleRequest struct {
	Plate    string `json:"placa"`
	Nickname string `json:"nome"`
}

type addVehicleResponse struct {
	Message string         `json:"message"`
	Vehicle domain.Vehicle `json:"vehicle"`
}

type uploadResponse struct {
	Message      string            `json:"message,omitempty"`
	Error        string            `json:"error,omitempty"`
	PDFLinks     []string          `json:"pdfLinks,omitempty"`
	UploadErrors []app.UploadError `json:"uploadErrors,omitempty"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type validatePINRequest struct {
	Email string `json:"email"`
	PIN   string `json:"pin"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

// accounts
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "muitas tentativas de cadastro") {
		s.audit(r, "api.signup", "rate_limited")
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "api.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.audit(r, "api.signup", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, messageResponse{Message: "Usuário cadastrado com sucesso"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "muitas tentativas de login") {
		s.audit(r, "api.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "api.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, user, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "api.login", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{Message: "Login realizado com sucesso", Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, id store.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "api.logout", "success", "user_id", id.UserID)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Sessão encerrada"})
}

func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request, id store.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.UserData(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":  user.Name,
		"email": user.Email,
		"phone": user.Phone,
	})
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request, id store.Identity) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := s.app.UpdateProfile(r.Context(), id.UserID, app.ProfileInput{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Dados atualizados com sucesso"})
}

// vehicles
func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request, id store.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	vehicles, err := s.app.ListVehicles(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vehicles": vehicles})
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request, id store.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req addVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	v, err := s.app.AddVehicle(r.Context(), id.UserID, req.Plate, req.Nickname)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, addVehicleResponse{Message: "Veículo adicionado com sucesso", Vehicle: v})
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request, id store.Identity) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	vehicleID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/delete-veiculo/"), "/")
	if vehicleID == "" || strings.Contains(vehicleID, "/") {
		writeError(w, http.StatusNotFound, app.ErrVehicleNotFound.Error())
		return
	}
	if err := s.app.DeleteVehicle(r.Context(), id.UserID, vehicleID); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Veículo removido com sucesso"})
}

// service requests
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"servicos": s.app.Services()})
}

func (s *Server) handleMyServices(w http.ResponseWriter, r *http.Request, id store.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	reqs, err := s.app.ListServiceRequests(r.Context(), id.UserID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"servicos": reqs})
}

func (s *Server) handleUploadPDFs(w http.ResponseWriter, r *http.Request, id store.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "arquivos excedem o tamanho máximo permitido")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := r.MultipartForm
	headers := append(append([]*multipart.FileHeader(nil), form.File["pdfFiles"]...), form.File["pdfFiles[]"]...)
	files := make([]app.Upload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, app.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (app.Document, error) {
				f, err := fh.Open()
				if err != nil {
					return nil, err
				}
				return f, nil
			},
		})
	}
	sub := app.Submission{
		ServiceType:     r.FormValue("tipoServico"),
		ApplicantName:   r.FormValue("nomeCompleto"),
		PaymentMethod:   r.FormValue("formaPagamento"),
		VehiclePlate:    r.FormValue("placaVeiculo"),
		VehicleNickname: r.FormValue("nomeVeiculo"),
		Files:           files,
	}
	res, err := s.app.SubmitDocuments(r.Context(), id.UserID, sub)
	if err != nil {
		if errors.Is(err, app.ErrNoFilesStored) {
			status, msg := statusFor(err)
			writeJSON(w, status, uploadResponse{Error: msg, UploadErrors: res.Errors})
			return
		}
		writeAppError(w, r, err)
		return
	}
	msg := "Arquivos enviados com sucesso"
	if len(res.Errors) > 0 {
		msg = "Alguns arquivos não puderam ser enviados"
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Message:      msg,
		PDFLinks:     res.Links,
		UploadErrors: res.Errors,
	})
}

// password recovery
func (s *Server) handleSendPIN(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.pinLimiter, "muitas solicitações de PIN") {
		s.audit(r, "api.pin.send", "rate_limited")
		return
	}
	var req emailRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, recoveryResponse{Message: "invalid JSON body"})
		return
	}
	if err := s.app.SendPIN(r.Context(), req.Email); err != nil {
		s.audit(r, "api.pin.send", "fail", "reason", err.Error())
		writeRecoveryError(w, r, err)
		return
	}
	s.audit(r, "api.pin.send", "success")
	writeJSON(w, http.StatusOK, recoveryResponse{Success: true, Message: "PIN enviado para o email"})
}

func (s *Server) handleValidatePIN(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.pinLimiter, "muitas tentativas de validação") {
		s.audit(r, "api.pin.validate", "rate_limited")
		return
	}
	var req validatePINRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, recoveryResponse{Message: "invalid JSON body"})
		return
	}
	if err := s.app.ValidatePIN(r.Context(), req.Email, req.PIN); err != nil {
		s.audit(r, "api.pin.validate", "fail", "reason", err.Error())
		writeRecoveryError(w, r, err)
		return
	}
	s.audit(r, "api.pin.validate", "success")
	writeJSON(w, http.StatusOK, recoveryResponse{Success: true, Message: "PIN validado"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.pinLimiter, "muitas tentativas de redefinição") {
		s.audit(r, "api.password.reset", "rate_limited")
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, recoveryResponse{Message: "invalid JSON body"})
		return
	}
	if err := s.app.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		s.audit(r, "api.password.reset", "fail", "reason", err.Error())
		writeRecoveryError(w, r, err)
		return
	}
	s.audit(r, "api.password.reset", "success")
	writeJSON(w, http.StatusOK, recoveryResponse{Success: true, Message: "Senha redefinida com sucesso"})
}
