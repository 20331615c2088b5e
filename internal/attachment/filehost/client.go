// Package filehost talks to the Cloudinary-compatible upload API.
package filehost

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"etatcivil/internal/attachment"
)

var tracer = otel.Tracer("etatcivil/filehost")

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type Client struct {
	http         *resty.Client
	cloudName    string
	apiKey       string
	uploadPreset string
}

func New(baseURL, cloudName, apiKey, uploadPreset string) *Client {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	return &Client{
		http:         rc,
		cloudName:    cloudName,
		apiKey:       apiKey,
		uploadPreset: uploadPreset,
	}
}

// Upload posts the file as multipart form data and returns its secure URL.
func (c *Client) Upload(ctx context.Context, in attachment.Upload) (*attachment.Hosted, error) {
	ctx, span := tracer.Start(ctx, "filehost.upload")
	defer span.End()
	span.SetAttributes(
		attribute.String("file.name", in.Filename),
		attribute.Int64("file.size", in.Size),
	)

	form := map[string]string{"upload_preset": c.uploadPreset}
	if c.apiKey != "" {
		form["api_key"] = c.apiKey
	}
	if in.Folder != "" {
		form["folder"] = in.Folder
	}

	var out uploadResponse
	var failure errorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", in.Filename, in.Body).
		SetFormData(form).
		SetResult(&out).
		SetError(&failure).
		Post("/" + c.cloudName + "/auto/upload")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("upload to file host: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("file host answered %d: %s", resp.StatusCode(), failure.Error.Message)
	}
	return &attachment.Hosted{URL: out.SecureURL, PublicID: out.PublicID}, nil
}
