package i18n

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	httpclient "github.com/campusbite/canteen/pkg/http"
)

// Translator turns one string from source into target.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Google calls the Cloud Translation v2 REST endpoint.
type Google struct {
	URL    string
	Key    string
	Client *http.Client
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g Google) Translate(ctx context.Context, text, source, target string) (string, error) {
	if g.Key == "" {
		return "", errors.New("i18n: TRANSLATE_API_KEY is not set")
	}
	req := httpclient.Post(g.URL).
		WithContext(ctx).
		Query("key", g.Key).
		Body(map[string]interface{}{"q": text, "source": source, "target": target, "format": "text"}).
		Timeout(20*time.Second).
		Retry(3, 500*time.Millisecond)
	if g.Client != nil {
		req = req.Using(g.Client)
	}

	resp, err := req.Send()
	if err != nil {
		return "", err
	}
	var out googleResponse
	if err := resp.JSON(&out); err != nil {
		return "", fmt.Errorf("i18n: %d: %w", resp.StatusCode, err)
	}
	if !resp.OK() {
		if out.Error != nil {
			return "", fmt.Errorf("i18n: google: %s", out.Error.Message)
		}
		return "", resp.Throw()
	}
	if len(out.Data.Translations) == 0 {
		return "", errors.New("i18n: google returned no translation")
	}
	return html.UnescapeString(out.Data.Translations[0].TranslatedText), nil
}
