package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dance_studio_bookings_total",
			Help: "Booking transitions by resulting status",
		},
		[]string{"status"},
	)

	HallConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dance_studio_hall_conflicts_total",
			Help: "Rejected hall reservations because of an overlapping booking or lesson",
		},
		[]string{"consumer"},
	)

	LessonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dance_studio_lessons_total",
			Help: "Lesson transitions by resulting status",
		},
		[]string{"status"},
	)

	EnrollmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dance_studio_enrollments_total",
			Help: "Enrollment transitions by resulting status",
		},
		[]string{"status"},
	)

	AttendanceSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dance_studio_attendance_sync_total",
			Help: "Attendance synchronization outcomes",
		},
		[]string{"source", "result"},
	)

	AttendanceSyncPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dance_studio_attendance_sync_pending",
			Help: "Unprocessed attendance sync tasks in the outbox",
		},
	)

	AttendanceMigratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dance_studio_attendance_migrated_total",
			Help: "Attendance rows synthesized from historical bookings and enrollments",
		},
		[]string{"source"},
	)

	StorageUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dance_studio_storage_up",
			Help: "1 when the last storage health check succeeded",
		},
	)
)

// RecordBooking counts a booking reaching status.
func RecordBooking(status string) {
	BookingsTotal.WithLabelValues(status).Inc()
}

// RecordHallConflict counts a request rejected because the hall was busy.
func RecordHallConflict(consumer string) {
	HallConflictsTotal.WithLabelValues(consumer).Inc()
}

// RecordLesson counts a lesson reaching status.
func RecordLesson(status string) {
	LessonsTotal.WithLabelValues(status).Inc()
}

// RecordEnrollment counts an enrollment reaching status.
func RecordEnrollment(status string) {
	EnrollmentsTotal.WithLabelValues(status).Inc()
}

// RecordAttendanceSync counts one processed sync task by source and outcome.
func RecordAttendanceSync(source, result string) {
	AttendanceSyncTotal.WithLabelValues(source, result).Inc()
}

// SetAttendanceSyncPending reports the outbox backlog.
func SetAttendanceSyncPending(n int) {
	AttendanceSyncPending.Set(float64(n))
}

// RecordAttendanceMigrated adds rows created by the historical migration.
func RecordAttendanceMigrated(source string, n int) {
	AttendanceMigratedTotal.WithLabelValues(source).Add(float64(n))
}

// SetStorageUp records the result of the last storage ping.
func SetStorageUp(up bool) {
	if up {
		StorageUp.Set(1)
		return
	}
	StorageUp.Set(0)
}
