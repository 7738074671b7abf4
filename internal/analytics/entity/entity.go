package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ActivityType what a user did
type ActivityType string

const (
	ActivityLogin        ActivityType = "LOGIN"
	ActivityLogout       ActivityType = "LOGOUT"
	ActivityCreate       ActivityType = "CREATE"
	ActivityUpdate       ActivityType = "UPDATE"
	ActivityDelete       ActivityType = "DELETE"
	ActivityView         ActivityType = "VIEW"
	ActivityExport       ActivityType = "EXPORT"
	ActivityImport       ActivityType = "IMPORT"
	ActivityAssign       ActivityType = "ASSIGN"
	ActivityComplete     ActivityType = "COMPLETE"
	ActivityApprove      ActivityType = "APPROVE"
	ActivityReject       ActivityType = "REJECT"
	ActivityComment      ActivityType = "COMMENT"
	ActivityNotification ActivityType = "NOTIFICATION"
	ActivityError        ActivityType = "ERROR"
	ActivityOther        ActivityType = "OTHER"
)

// EntityType subject of an activity
type EntityType string

const (
	EntityTask         EntityType = "TASK"
	EntityFunction     EntityType = "FUNCTION"
	EntityField        EntityType = "FIELD"
	EntityInput        EntityType = "INPUT"
	EntityUser         EntityType = "USER"
	EntityCustomer     EntityType = "CUSTOMER"
	EntityReport       EntityType = "REPORT"
	EntityNotification EntityType = "NOTIFICATION"
	EntitySetting      EntityType = "SETTING"
	EntityOther        EntityType = "OTHER"
)

// MetricType kind of performance sample
type MetricType string

const (
	MetricAPIResponseTime   MetricType = "API_RESPONSE_TIME"
	MetricDatabaseQueryTime MetricType = "DATABASE_QUERY_TIME"
	MetricRenderingTime     MetricType = "RENDERING_TIME"
	MetricMemoryUsage       MetricType = "MEMORY_USAGE"
	MetricCPUUsage          MetricType = "CPU_USAGE"
	MetricNetworkLatency    MetricType = "NETWORK_LATENCY"
	MetricErrorCount        MetricType = "ERROR_COUNT"
	MetricRequestCount      MetricType = "REQUEST_COUNT"
	MetricConcurrentUsers   MetricType = "CONCURRENT_USERS"
	MetricSystem            MetricType = "SYSTEM_METRIC"
)

// StatisticType kind of aggregated statistic
type StatisticType string

const (
	StatTaskCompletionRate  StatisticType = "TASK_COMPLETION_RATE"
	StatAverageTaskDuration StatisticType = "AVERAGE_TASK_DURATION"
	StatUserActivity        StatisticType = "USER_ACTIVITY"
	StatTaskDistribution    StatisticType = "TASK_DISTRIBUTION"
	StatResponseTime        StatisticType = "RESPONSE_TIME"
	StatErrorRate           StatisticType = "ERROR_RATE"
	StatResourceUsage       StatisticType = "RESOURCE_USAGE"
	StatCustomerEngagement  StatisticType = "CUSTOMER_ENGAGEMENT"
	StatPerformanceMetric   StatisticType = "PERFORMANCE_METRIC"
	StatCustomMetric        StatisticType = "CUSTOM_METRIC"
)

// TimePeriod aggregation window
type TimePeriod string

const (
	PeriodHourly    TimePeriod = "HOURLY"
	PeriodDaily     TimePeriod = "DAILY"
	PeriodWeekly    TimePeriod = "WEEKLY"
	PeriodMonthly   TimePeriod = "MONTHLY"
	PeriodQuarterly TimePeriod = "QUARTERLY"
	PeriodYearly    TimePeriod = "YEARLY"
	PeriodCustom    TimePeriod = "CUSTOM"
)

// ActivityLog audit trail entry
type ActivityLog struct {
	ID           string       `json:"id" gorm:"primaryKey;size:36"`
	ActivityType ActivityType `json:"activity_type" gorm:"size:32;not null;index"`
	EntityType   EntityType   `json:"entity_type" gorm:"size:32;index"`
	EntityID     string       `json:"entity_id" gorm:"size:36;index"`
	UserID       string       `json:"user_id" gorm:"size:36;index"`
	IPAddress    string       `json:"ip_address" gorm:"size:45"`
	UserAgent    string       `json:"user_agent" gorm:"size:500"`
	Description  string       `json:"description" gorm:"size:500;not null"`
	Details      JSON         `json:"details"`
	StatusCode   *int         `json:"status_code"`
	Tags         JSON         `json:"tags"`
	CreatedAt    time.Time    `json:"created_at" gorm:"index"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// PerformanceMetric one timing sample
type PerformanceMetric struct {
	ID             string     `json:"id" gorm:"primaryKey;size:36"`
	MetricType     MetricType `json:"metric_type" gorm:"size:32;not null;index"`
	Operation      string     `json:"operation" gorm:"size:255;not null;index"`
	DurationMs     float64    `json:"duration_ms" gorm:"not null"`
	HTTPMethod     string     `json:"http_method" gorm:"size:10"`
	StatusCode     *int       `json:"status_code"`
	EntityType     string     `json:"entity_type" gorm:"size:100"`
	EntityID       string     `json:"entity_id" gorm:"size:36"`
	UserID         string     `json:"user_id" gorm:"size:36"`
	RequestDetails JSON       `json:"request_details"`
	ResponseSize   *int       `json:"response_size"`
	IPAddress      string     `json:"ip_address" gorm:"size:45"`
	UserAgent      string     `json:"user_agent" gorm:"size:500"`
	Metadata       JSON       `json:"metadata"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
}

func (PerformanceMetric) TableName() string {
	return "performance_metrics"
}

// Statistic aggregated figure for a period
type Statistic struct {
	ID          string        `json:"id" gorm:"primaryKey;size:36"`
	Type        StatisticType `json:"statistic_type" gorm:"column:statistic_type;size:32;not null;index"`
	TimePeriod  TimePeriod    `json:"time_period" gorm:"size:16;not null;index"`
	Name        string        `json:"name" gorm:"size:255;not null"`
	Category    string        `json:"category" gorm:"size:100"`
	Description string        `json:"description" gorm:"size:500"`
	PeriodStart time.Time     `json:"period_start" gorm:"not null"`
	PeriodEnd   time.Time     `json:"period_end" gorm:"not null"`
	Data        JSON          `json:"data" gorm:"not null"`
	Dimensions  JSON          `json:"dimensions"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (Statistic) TableName() string {
	return "statistics"
}

// Models analytics tables
func Models() []interface{} {
	return []interface{}{&ActivityLog{}, &PerformanceMetric{}, &Statistic{}}
}

// JSON arbitrary JSON document (jsonb on postgres)
type JSON json.RawMessage

// MarshalJSONValue encodes v; a nil v gives a nil document
func MarshalJSONValue(v interface{}) JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return JSON(b)
}

// Decode unmarshals the document into v
func (j JSON) Decode(v interface{}) error {
	if len(j) == 0 {
		return nil
	}
	return json.Unmarshal(j, v)
}

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("failed to scan json column: %v", value)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}

func (JSON) GormDataType() string { return "json" }

func (JSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "JSONB"
	}
	return "TEXT"
}
