package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/AjcJustin/aero-park/internal/domain"
	"github.com/AjcJustin/aero-park/internal/service"
)

// Scheduler chạy các vòng quét nền: giải phóng đặt chỗ quá hạn, vô hiệu
// hóa mã quá hạn và phát snapshot trạng thái định kỳ. Mỗi vòng quét là
// idempotent; hai tiến trình cùng quét thì bên thua conditional transition
// chỉ việc bỏ qua.
type Scheduler struct {
	resService     *service.ReservationService
	codeService    *service.AccessCodeService
	parkingService *service.ParkingService
	notifier       domain.Notifier

	reservationSweep time.Duration
	codeSweep        time.Duration
	statusBroadcast  time.Duration
	nowFn            func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(
	resService *service.ReservationService,
	codeService *service.AccessCodeService,
	parkingService *service.ParkingService,
	notifier domain.Notifier,
	reservationSweep, codeSweep, statusBroadcast time.Duration,
) *Scheduler {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &Scheduler{
		resService:       resService,
		codeService:      codeService,
		parkingService:   parkingService,
		notifier:         notifier,
		reservationSweep: reservationSweep,
		codeSweep:        codeSweep,
		statusBroadcast:  statusBroadcast,
		nowFn:            time.Now,
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
	log.Printf("Scheduler khởi động: quét đặt chỗ mỗi %s, quét mã mỗi %s, phát trạng thái mỗi %s",
		s.reservationSweep, s.codeSweep, s.statusBroadcast)
}

// Stop dừng các vòng quét và chờ goroutine thoát.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	log.Println("Scheduler đã dừng")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	reservationTicker := time.NewTicker(s.reservationSweep)
	defer reservationTicker.Stop()
	codeTicker := time.NewTicker(s.codeSweep)
	defer codeTicker.Stop()
	statusTicker := time.NewTicker(s.statusBroadcast)
	defer statusTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reservationTicker.C:
			s.SweepReservations(ctx)
		case <-codeTicker.C:
			s.SweepCodes(ctx)
		case <-statusTicker.C:
			s.BroadcastStatus(ctx)
		}
	}
}

func (s *Scheduler) SweepReservations(ctx context.Context) {
	now := s.nowFn().UTC()
	count, err := s.resService.ExpireDue(ctx, now)
	if err != nil {
		log.Printf("Lỗi quét đặt chỗ quá hạn: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Sweep: đã giải phóng %d đặt chỗ quá hạn", count)
	}
}

func (s *Scheduler) SweepCodes(ctx context.Context) {
	now := s.nowFn().UTC()
	count, err := s.codeService.ExpireDue(ctx, now)
	if err != nil {
		log.Printf("Lỗi quét mã truy cập quá hạn: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Sweep: đã vô hiệu hóa %d mã quá hạn", count)
	}
}

func (s *Scheduler) BroadcastStatus(ctx context.Context) {
	status, err := s.parkingService.GetStatus(ctx, false)
	if err != nil {
		log.Printf("Lỗi lấy snapshot trạng thái bãi: %v", err)
		return
	}
	s.notifier.Publish(domain.Event{
		Type:      domain.EventStatusSnapshot,
		Payload:   status,
		Timestamp: s.nowFn().UTC(),
	})
}
