package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/Thomas-Kenner/GrapheneTrace-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SessionRepository 监测会话与帧仓库（monitor_sessions / pressure_frames 表）
type SessionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSessionRepository 创建会话仓库
func NewSessionRepository(db *sql.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// GetOrCreateSession 获取或创建 设备+日期 对应的会话
// 同一设备同一天的帧归入同一会话；未分配患者的设备产生
// patient_id 为 NULL 的孤儿会话。并发创建竞争按"已存在，重读"处理。
func (r *SessionRepository) GetOrCreateSession(ctx context.Context, deviceID string, patientID *string, at time.Time) (*models.Session, error) {
	day := at.UTC().Truncate(24 * time.Hour)

	session, err := r.getSessionByDeviceDay(ctx, deviceID, day)
	if err == nil {
		return session, nil
	}
	if err != models.ErrNotFound {
		return nil, err
	}

	newSession := &models.Session{
		SessionID: uuid.New().String(),
		DeviceID:  deviceID,
		PatientID: patientID,
		StartTime: at.UTC(),
	}

	query := `
		INSERT INTO monitor_sessions (session_id, device_id, patient_id, session_date, start_time, needs_review)
		VALUES ($1, $2, $3, $4, $5, false)
	`

	_, err = r.db.ExecContext(ctx, query,
		newSession.SessionID,
		newSession.DeviceID,
		toNullString(newSession.PatientID),
		day,
		newSession.StartTime,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// 并发创建竞争：另一个接入路径先创建了，重读
			return r.getSessionByDeviceDay(ctx, deviceID, day)
		}
		return nil, models.WrapStorageError("create session", err)
	}

	r.logger.Info("Created monitor session",
		zap.String("session_id", newSession.SessionID),
		zap.String("device_id", deviceID),
		zap.Bool("orphan", patientID == nil),
	)

	return newSession, nil
}

// getSessionByDeviceDay 按 设备+日期 查询会话
func (r *SessionRepository) getSessionByDeviceDay(ctx context.Context, deviceID string, day time.Time) (*models.Session, error) {
	query := `
		SELECT session_id, device_id, patient_id, start_time, end_time, needs_review
		FROM monitor_sessions
		WHERE device_id = $1 AND session_date = $2
	`

	return r.scanSession(r.db.QueryRowContext(ctx, query, deviceID, day))
}

// GetSession 按 session_id 查询会话
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT session_id, device_id, patient_id, start_time, end_time, needs_review
		FROM monitor_sessions
		WHERE session_id = $1
	`

	return r.scanSession(r.db.QueryRowContext(ctx, query, sessionID))
}

func (r *SessionRepository) scanSession(row *sql.Row) (*models.Session, error) {
	var s models.Session
	var patientID sql.NullString
	var endTime sql.NullTime

	err := row.Scan(
		&s.SessionID,
		&s.DeviceID,
		&patientID,
		&s.StartTime,
		&endTime,
		&s.NeedsReview,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, models.WrapStorageError("get session", err)
	}

	if patientID.Valid {
		s.PatientID = &patientID.String
	}
	if endTime.Valid {
		s.EndTime = &endTime.Time
	}

	return &s, nil
}

// MarkSessionForReview 标记会话需要人工复核（报警事件的副作用）
func (r *SessionRepository) MarkSessionForReview(ctx context.Context, sessionID string) error {
	query := `UPDATE monitor_sessions SET needs_review = true WHERE session_id = $1`

	result, err := r.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return models.WrapStorageError("mark session for review", err)
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return models.ErrNotFound
	}

	return nil
}

// EndSession 结束会话（设备停止上报时由接入侧调用）
func (r *SessionRepository) EndSession(ctx context.Context, sessionID string, endTime time.Time) error {
	query := `UPDATE monitor_sessions SET end_time = $2 WHERE session_id = $1`

	_, err := r.db.ExecContext(ctx, query, sessionID, endTime.UTC())
	if err != nil {
		return models.WrapStorageError("end session", err)
	}

	return nil
}

// ============================================
// 帧操作
// ============================================

// AppendFrame 向会话追加一帧（帧一旦写入即不可变）
func (r *SessionRepository) AppendFrame(ctx context.Context, frame *models.PressureFrame) error {
	if frame.FrameID == "" {
		frame.FrameID = uuid.New().String()
	}

	query := `
		INSERT INTO pressure_frames
			(frame_id, session_id, patient_id, device_id, timestamp, grid_data,
			 peak_pressure, contact_area, device_faults, medical_alerts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		frame.FrameID,
		frame.SessionID,
		toNullString(frame.PatientID),
		frame.DeviceID,
		frame.Timestamp.UTC(),
		encodeGrid(frame.Grid),
		frame.PeakPressure,
		frame.ContactArea,
		int(frame.DeviceFaults),
		int(frame.MedicalAlerts),
	)
	if err != nil {
		return models.WrapStorageError("append frame", err)
	}

	return nil
}

// GetFramesForSession 获取会话内的全部帧（按时间升序）
func (r *SessionRepository) GetFramesForSession(ctx context.Context, sessionID string) ([]models.PressureFrame, error) {
	query := frameSelect + `
		WHERE session_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, models.WrapStorageError("get frames for session", err)
	}
	defer rows.Close()

	return r.scanFrames(rows)
}

// GetFramesInWindow 获取患者在时间窗口内的全部帧（按时间升序）
// 聚合查询可能跨越大窗口，依赖 ctx 支持调用方取消。
func (r *SessionRepository) GetFramesInWindow(ctx context.Context, patientID string, from, to time.Time) ([]models.PressureFrame, error) {
	query := frameSelect + `
		WHERE patient_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, patientID, from.UTC(), to.UTC())
	if err != nil {
		return nil, models.WrapStorageError("get frames in window", err)
	}
	defer rows.Close()

	return r.scanFrames(rows)
}

// GetSessionsInWindow 获取患者在时间窗口内开始的会话（按开始时间升序）
func (r *SessionRepository) GetSessionsInWindow(ctx context.Context, patientID string, from, to time.Time) ([]models.Session, error) {
	query := `
		SELECT session_id, device_id, patient_id, start_time, end_time, needs_review
		FROM monitor_sessions
		WHERE patient_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, patientID, from.UTC(), to.UTC())
	if err != nil {
		return nil, models.WrapStorageError("get sessions in window", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var s models.Session
		var pid sql.NullString
		var endTime sql.NullTime

		if err := rows.Scan(&s.SessionID, &s.DeviceID, &pid, &s.StartTime, &endTime, &s.NeedsReview); err != nil {
			return nil, models.WrapStorageError("scan session", err)
		}
		if pid.Valid {
			s.PatientID = &pid.String
		}
		if endTime.Valid {
			s.EndTime = &endTime.Time
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapStorageError("iterate sessions", err)
	}

	return sessions, nil
}

const frameSelect = `
	SELECT frame_id, session_id, patient_id, device_id, timestamp, grid_data,
	       peak_pressure, contact_area, device_faults, medical_alerts
	FROM pressure_frames
`

func (r *SessionRepository) scanFrames(rows *sql.Rows) ([]models.PressureFrame, error) {
	var frames []models.PressureFrame
	for rows.Next() {
		var f models.PressureFrame
		var pid sql.NullString
		var gridData string
		var faults, alerts int

		err := rows.Scan(
			&f.FrameID,
			&f.SessionID,
			&pid,
			&f.DeviceID,
			&f.Timestamp,
			&gridData,
			&f.PeakPressure,
			&f.ContactArea,
			&faults,
			&alerts,
		)
		if err != nil {
			return nil, models.WrapStorageError("scan frame", err)
		}

		if pid.Valid {
			f.PatientID = &pid.String
		}
		f.Grid = decodeGrid(gridData)
		f.DeviceFaults = models.DeviceFaultFlags(faults)
		f.MedicalAlerts = models.MedicalAlertFlags(alerts)

		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, models.WrapStorageError("iterate frames", err)
	}

	return frames, nil
}

// encodeGrid 网格序列化为逗号分隔文本（与设备上报行格式一致）
func encodeGrid(grid []int) string {
	parts := make([]string, len(grid))
	for i, v := range grid {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// decodeGrid 反序列化网格（坏值置 0，与解析器策略一致）
func decodeGrid(data string) []int {
	if data == "" {
		return nil
	}
	parts := strings.Split(data, ",")
	grid := make([]int, len(parts))
	for i, p := range parts {
		if v, err := strconv.Atoi(p); err == nil && v >= 0 {
			grid[i] = v
		}
	}
	return grid
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
