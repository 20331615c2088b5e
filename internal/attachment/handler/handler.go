package handler

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"etatcivil/internal/attachment"
	"etatcivil/internal/authz"
	certModels "etatcivil/internal/certificate/models"
	declModels "etatcivil/internal/declaration/models"
	id "etatcivil/pkg/domain"
	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
	"etatcivil/pkg/requestcontext"
)

const (
	// multipartOverhead leaves room for boundaries and form fields on top of the file ceiling.
	multipartOverhead = 64 << 10

	defaultCitizenType = "PIECE_JUSTIFICATIVE"
	defaultAgentType   = "ACTE"
)

type Uploader interface {
	Attach(ctx context.Context, in attachment.Upload, limit int64) (*attachment.Hosted, error)
}

type Declarations interface {
	OwnerOf(ctx context.Context, requestID uuid.UUID) (id.UserID, error)
	AttachDocument(ctx context.Context, declarationID id.DeclarationID, docType, url, publicID string) (*declModels.Document, error)
}

type Certificates interface {
	OwnerOf(ctx context.Context, requestID uuid.UUID) (id.UserID, error)
	AttachFile(ctx context.Context, certificateID id.CertificateID, fileType, url, publicID string) (*certModels.File, error)
}

// Limits are the per-audience upload ceilings in bytes.
type Limits struct {
	Citizen int64
	Agent   int64
}

var (
	citizenUploadPolicy = authz.Allow("attachment", "upload", id.RoleCitizen)
	agentUploadPolicy   = authz.Allow("attachment", "upload_final", id.RoleAgent, id.RoleAdmin)
)

type Handler struct {
	uploader     Uploader
	declarations Declarations
	certificates Certificates
	limits       Limits
	logger       *slog.Logger
}

func New(uploader Uploader, declarations Declarations, certificates Certificates, limits Limits, logger *slog.Logger) *Handler {
	return &Handler{
		uploader:     uploader,
		declarations: declarations,
		certificates: certificates,
		limits:       limits,
		logger:       logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.With(authz.Middleware(citizenUploadPolicy, h.logger)).Post("/birth-declarations/{id}/documents", h.handleCitizenDocument)
	r.Group(func(r chi.Router) {
		r.Use(authz.Middleware(agentUploadPolicy, h.logger))
		r.Post("/agent/birth-declarations/{id}/documents", h.handleAgentDocument)
		r.Post("/agent/birth-certificates/{id}/files", h.handleAgentFile)
	})
}

func (h *Handler) handleCitizenDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	declarationID, err := id.ParseDeclarationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeNotFound, "Déclaration introuvable"), "invalid declaration id")
		return
	}
	owner, err := h.declarations.OwnerOf(ctx, uuid.UUID(declarationID))
	if err != nil {
		h.fail(w, r, err, "failed to resolve declaration")
		return
	}
	if err := authz.RequireOwner(requestcontext.Principal(ctx), owner); err != nil {
		h.fail(w, r, err, "document upload on foreign declaration")
		return
	}

	hosted, docType, ok := h.receive(w, r, h.limits.Citizen, defaultCitizenType, "declarations/"+declarationID.String())
	if !ok {
		return
	}
	doc, err := h.declarations.AttachDocument(ctx, declarationID, docType, hosted.URL, hosted.PublicID)
	if err != nil {
		h.fail(w, r, err, "failed to attach document")
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, doc)
}

func (h *Handler) handleAgentDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	declarationID, err := id.ParseDeclarationID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeNotFound, "Déclaration introuvable"), "invalid declaration id")
		return
	}
	if _, err := h.declarations.OwnerOf(ctx, uuid.UUID(declarationID)); err != nil {
		h.fail(w, r, err, "failed to resolve declaration")
		return
	}

	hosted, docType, ok := h.receive(w, r, h.limits.Agent, defaultAgentType, "declarations/"+declarationID.String())
	if !ok {
		return
	}
	doc, err := h.declarations.AttachDocument(ctx, declarationID, docType, hosted.URL, hosted.PublicID)
	if err != nil {
		h.fail(w, r, err, "failed to attach document")
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, doc)
}

func (h *Handler) handleAgentFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	certificateID, err := id.ParseCertificateID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, dErrors.New(dErrors.CodeNotFound, "Demande d'acte introuvable"), "invalid certificate id")
		return
	}
	if _, err := h.certificates.OwnerOf(ctx, uuid.UUID(certificateID)); err != nil {
		h.fail(w, r, err, "failed to resolve certificate")
		return
	}

	hosted, fileType, ok := h.receive(w, r, h.limits.Agent, defaultAgentType, "certificates/"+certificateID.String())
	if !ok {
		return
	}
	f, err := h.certificates.AttachFile(ctx, certificateID, fileType, hosted.URL, hosted.PublicID)
	if err != nil {
		h.fail(w, r, err, "failed to attach file")
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, f)
}

// receive reads the "file" part and hands it to the uploader. It writes the
// error response itself and reports whether the caller should continue.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request, limit int64, defaultType, folder string) (*attachment.Hosted, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		h.fail(w, r, formError(err), "invalid upload form")
		return nil, "", false
	}
	defer file.Close()

	docType := strings.TrimSpace(r.FormValue("type"))
	if docType == "" {
		docType = defaultType
	}
	hosted, err := h.uploader.Attach(r.Context(), attachment.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		Folder:      "etatcivil/" + folder,
	}, limit)
	if err != nil {
		h.fail(w, r, err, "upload failed")
		return nil, "", false
	}
	return hosted, docType, true
}

func formError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, multipart.ErrMessageTooLarge):
		return dErrors.Wrap(err, dErrors.CodePayloadTooLarge, "Le fichier dépasse la taille maximale autorisée")
	case errors.Is(err, http.ErrMissingFile):
		return dErrors.Validation("file", "Le fichier est requis")
	default:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "Formulaire de téléversement invalide")
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	httputil.Fail(w, r, h.logger, err, msg)
}
