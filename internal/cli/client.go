package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobStats — статистика задачи планировщика.
type JobStats struct {
	Runs     int    `json:"runs"`
	Failures int    `json:"failures"`
	LastRun  string `json:"last_run,omitempty"`
	NextRun  string `json:"next_run,omitempty"`
}

// JobError — ошибка задачи.
type JobError struct {
	Job   string `json:"job"`
	Error string `json:"error"`
	At    string `json:"at"`
}

// Settings — настройки планировщика.
type Settings struct {
	Enabled             bool   `json:"enabled"`
	AppointmentInterval string `json:"appointment_interval"`
	FullInterval        string `json:"full_interval"`
	AppointmentCron     string `json:"appointment_cron,omitempty"`
	FullCron            string `json:"full_cron,omitempty"`
	StartDelay          string `json:"start_delay"`
	BatchSize           int    `json:"batch_size"`
}

// EngineStatus — состояние планировщика.
type EngineStatus struct {
	Running          bool                `json:"running"`
	Enabled          bool                `json:"enabled"`
	AppointmentEvery string              `json:"appointment_every"`
	FullEvery        string              `json:"full_every"`
	BatchSize        int                 `json:"batch_size"`
	StartedAt        string              `json:"started_at,omitempty"`
	UptimeSec        int64               `json:"uptime_sec"`
	Jobs             map[string]JobStats `json:"jobs"`
	Errors           []JobError          `json:"errors"`
	Settings         Settings            `json:"settings"`
}

// Report — отчёт ручного запуска задачи. Счётчики частей оставлены
// как есть: набор полей зависит от задачи.
type Report struct {
	Job          string         `json:"job"`
	StartedAt    string         `json:"started_at"`
	DurationNS   int64          `json:"duration_ns"`
	Enrollments  map[string]int `json:"enrollments,omitempty"`
	Appointments map[string]int `json:"appointments,omitempty"`
	Leads        map[string]int `json:"leads,omitempty"`
	Payments     map[string]int `json:"payments,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// Contact — контакт enrollment.
type Contact struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Name       string `json:"name,omitempty"`
	LeadID     string `json:"lead_id,omitempty"`
	CustomerID string `json:"customer_id,omitempty"`
}

// HistoryEntry — запись истории enrollment.
type HistoryEntry struct {
	StepIndex  int    `json:"step_index"`
	ExecutedAt string `json:"executed_at"`
	ActionType string `json:"action_type,omitempty"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
}

// EnrollmentResponse — enrollment из API.
type EnrollmentResponse struct {
	ID           string         `json:"id"`
	SequenceID   string         `json:"sequence_id"`
	Contact      Contact        `json:"contact"`
	CurrentStep  int            `json:"current_step"`
	Status       string         `json:"status"`
	NextActionAt string         `json:"next_action_at,omitempty"`
	LastActionAt string         `json:"last_action_at,omitempty"`
	PauseReason  string         `json:"pause_reason,omitempty"`
	StepHistory  []HistoryEntry `json:"step_history,omitempty"`
	CreatedAt    string         `json:"created_at"`
	CompletedAt  string         `json:"completed_at,omitempty"`
}

// ReminderStat — число напоминаний одного вида.
type ReminderStat struct {
	EntityType string `json:"entity_type"`
	Kind       string `json:"reminder_kind"`
	Count      int    `json:"count"`
	LastSentAt string `json:"last_sent_at,omitempty"`
}

// ReminderStats — статистика напоминаний.
type ReminderStats struct {
	Since string         `json:"since"`
	Total int            `json:"total"`
	Stats []ReminderStat `json:"stats"`
}

// --- Request types ---

// UpdateConfigRequest — изменение настроек планировщика.
type UpdateConfigRequest struct {
	Enabled             *bool   `json:"enabled,omitempty"`
	AppointmentInterval *string `json:"appointment_interval,omitempty"`
	FullInterval        *string `json:"full_interval,omitempty"`
	AppointmentCron     *string `json:"appointment_cron,omitempty"`
	FullCron            *string `json:"full_cron,omitempty"`
	StartDelay          *string `json:"start_delay,omitempty"`
	BatchSize           *int    `json:"batch_size,omitempty"`
}

// EnrollRequest — запись контакта.
type EnrollRequest struct {
	SequenceID string       `json:"sequence_id"`
	LeadID     string       `json:"lead_id,omitempty"`
	CustomerID string       `json:"customer_id,omitempty"`
	Contact    *ContactArgs `json:"contact,omitempty"`
}

// ContactArgs — контакт, переданный флагами.
type ContactArgs struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// cronSecretHeader — заголовок авторизации операционного API.
const cronSecretHeader = "X-Cron-Secret"

// Client — HTTP-клиент для операционного API Engage.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. secret передаётся в X-Cron-Secret.
func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		httpClient: &http.Client{
			// run all выполняется синхронно и может идти долго
			Timeout: 5 * time.Minute,
		},
	}
}

// --- Engine ---

// Status возвращает состояние планировщика.
func (c *Client) Status() (*EngineStatus, error) {
	var st EngineStatus
	err := c.get("/api/v1/engine/status", &st)
	return &st, err
}

// Start запускает планировщик.
func (c *Client) Start() (*EngineStatus, error) {
	var st EngineStatus
	err := c.post("/api/v1/engine/start", nil, &st)
	return &st, err
}

// Stop останавливает планировщик.
func (c *Client) Stop() (*EngineStatus, error) {
	var st EngineStatus
	err := c.post("/api/v1/engine/stop", nil, &st)
	return &st, err
}

// UpdateConfig меняет настройки планировщика.
func (c *Client) UpdateConfig(req UpdateConfigRequest) (*Settings, error) {
	var s Settings
	err := c.put("/api/v1/engine/config", req, &s)
	return &s, err
}

// Run выполняет задачу и ждёт отчёта.
func (c *Client) Run(job string) (*Report, error) {
	var r Report
	err := c.post("/api/v1/engine/run/"+url.PathEscape(job), nil, &r)
	return &r, err
}

// --- Enrollments ---

// Enroll записывает контакт в последовательность.
func (c *Client) Enroll(req EnrollRequest) (*EnrollmentResponse, error) {
	var e EnrollmentResponse
	err := c.post("/api/v1/enrollments", req, &e)
	return &e, err
}

// GetEnrollment возвращает enrollment с историей.
func (c *Client) GetEnrollment(id string) (*EnrollmentResponse, error) {
	var e EnrollmentResponse
	err := c.get("/api/v1/enrollments/"+url.PathEscape(id), &e)
	return &e, err
}

// ListEnrollments возвращает enrollments последовательности.
func (c *Client) ListEnrollments(sequenceID string, limit int) ([]EnrollmentResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var list []EnrollmentResponse
	err := c.list("/api/v1/sequences/"+url.PathEscape(sequenceID)+"/enrollments", params, &list)
	return list, err
}

// PauseEnrollment приостанавливает enrollment.
func (c *Client) PauseEnrollment(id, reason string) (*EnrollmentResponse, error) {
	var e EnrollmentResponse
	var body any
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	err := c.post("/api/v1/enrollments/"+url.PathEscape(id)+"/pause", body, &e)
	return &e, err
}

// ResumeEnrollment возобновляет enrollment.
func (c *Client) ResumeEnrollment(id string) (*EnrollmentResponse, error) {
	var e EnrollmentResponse
	err := c.post("/api/v1/enrollments/"+url.PathEscape(id)+"/resume", nil, &e)
	return &e, err
}

// CancelEnrollment отменяет enrollment.
func (c *Client) CancelEnrollment(id string) (*EnrollmentResponse, error) {
	var e EnrollmentResponse
	err := c.post("/api/v1/enrollments/"+url.PathEscape(id)+"/cancel", nil, &e)
	return &e, err
}

// --- Reminders ---

// ReminderStats возвращает статистику напоминаний за 7 дней.
func (c *Client) ReminderStats() (*ReminderStats, error) {
	var st ReminderStats
	err := c.get("/api/v1/reminders/stats", &st)
	return &st, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secret != "" {
		req.Header.Set(cronSecretHeader, c.secret)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
