package app

import "errors"

// User-facing messages are in Portuguese; the mobile client shows them as is.
var (
	ErrSignupFieldsRequired = errors.New("nome, email e senha são obrigatórios")
	ErrLoginFieldsRequired  = errors.New("email e senha são obrigatórios")
	ErrInvalidEmail         = errors.New("email inválido")
	ErrEmailAlreadyExists   = errors.New("Email já cadastrado")
	ErrUserNotFound         = errors.New("Usuário não encontrado")
	ErrWrongPassword        = errors.New("Senha incorreta")
	ErrInvalidToken         = errors.New("invalid token")
	ErrNameRequired         = errors.New("nome é obrigatório")

	ErrVehicleFieldsRequired = errors.New("placa e nome são obrigatórios")
	ErrInvalidPlate          = errors.New("placa inválida")
	ErrVehicleExists         = errors.New("veículo já cadastrado")
	ErrVehicleNotFound       = errors.New("veículo não encontrado")

	// ErrMissingFields is wrapped with the names of the missing fields.
	ErrMissingFields        = errors.New("campos obrigatórios ausentes")
	ErrNoFiles              = errors.New("nenhum arquivo enviado")
	ErrNotPDF               = errors.New("apenas arquivos PDF são aceitos")
	ErrUnknownService       = errors.New("tipo de serviço desconhecido")
	ErrInvalidPaymentMethod = errors.New("forma de pagamento inválida")
	ErrNoFilesStored        = errors.New("nenhum arquivo pôde ser armazenado")

	ErrPinInvalid     = errors.New("PIN inválido")
	ErrPinExpired     = errors.New("PIN expirado")
	ErrPinRequired    = errors.New("valide o PIN antes de redefinir a senha")
	ErrPinDelivery    = errors.New("não foi possível enviar o PIN")
	ErrEmailNotFound  = errors.New("Email não encontrado")
	ErrEmailRequired  = errors.New("email é obrigatório")
	ErrPinFieldsEmpty = errors.New("email e PIN são obrigatórios")
)
