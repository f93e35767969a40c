package otodomfetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/ivanychev/otodom-monitoring/internal/constants"
	"github.com/ivanychev/otodom-monitoring/internal/contextkeys"
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
)

// OtodomFetcherAdapter отвечает за все сетевые взаимодействия с Otodom.
// Родительский коллектор держит общие настройки; на каждый запрос
// делается одноразовый клон со своими обработчиками.
type OtodomFetcherAdapter struct {
	collector *colly.Collector
	retry     RetryPolicy
}

// NewOtodomFetcherAdapter — конструктор.
func NewOtodomFetcherAdapter(retry RetryPolicy) (*OtodomFetcherAdapter, error) {
	if retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("otodom fetcher: retry policy must allow at least one attempt")
	}

	c := colly.NewCollector(
		colly.AllowedDomains(constants.OtodomDomain),
		colly.UserAgent(constants.UserAgent),
		// Повторы и пагинация ходят на одни и те же URL.
		colly.AllowURLRevisit(),
	)

	return &OtodomFetcherAdapter{
		collector: c,
		retry:     retry,
	}, nil
}

// FetchPage выполняет один логический запрос за страницей, с повторами по
// политике retry. Кеширования нет: каждая страница качается заново.
func (a *OtodomFetcherAdapter) FetchPage(ctx context.Context, pageURL string) (domain.RawPage, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "OtodomFetcherAdapter(FetchPage)",
	})

	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= a.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := a.retry.Backoff(attempt - 1)
			logger.Warn("Retrying page fetch", port.Fields{
				"url":     pageURL,
				"attempt": attempt,
				"backoff": backoff.String(),
			})
			time.Sleep(backoff)
		}

		page, statusCode, err := a.fetchOnce(pageURL)
		if err == nil {
			return page, nil
		}
		lastStatus, lastErr = statusCode, err

		if !a.retry.Retryable(statusCode) {
			// Не-транзиентный статус: падаем сразу, без повторов.
			return domain.RawPage{}, &domain.FetchError{
				URL:        pageURL,
				StatusCode: statusCode,
				Attempts:   attempt,
				Err:        err,
			}
		}
		logger.Warn("Transient fetch failure", port.Fields{
			"url":    pageURL,
			"status": statusCode,
			"error":  err.Error(),
		})
	}

	return domain.RawPage{}, &domain.FetchError{
		URL:        pageURL,
		StatusCode: lastStatus,
		Attempts:   a.retry.MaxAttempts,
		Err:        fmt.Errorf("retries exhausted: %w", lastErr),
	}
}

// fetchOnce — одна сетевая попытка через одноразовый клон коллектора.
func (a *OtodomFetcherAdapter) fetchOnce(pageURL string) (domain.RawPage, int, error) {
	collector := a.collector.Clone()

	var page domain.RawPage
	var statusCode int
	var responseErr error

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		page = domain.RawPage{
			URL:        pageURL,
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		responseErr = err
	})

	if err := collector.Visit(pageURL); err != nil {
		return domain.RawPage{}, statusCode, fmt.Errorf("failed to visit %s: %w", pageURL, err)
	}
	collector.Wait()

	if responseErr != nil {
		return domain.RawPage{}, statusCode, fmt.Errorf("request to %s failed with status %d: %w", pageURL, statusCode, responseErr)
	}
	if statusCode != http.StatusOK {
		return domain.RawPage{}, statusCode, fmt.Errorf("request to %s returned status %d", pageURL, statusCode)
	}
	return page, statusCode, nil
}
