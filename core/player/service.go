// Package player 装配播放链路：取歌、解析分轨地址、加载传输层、
// 建立混音器并接通混音状态的远端同步。
package player

import (
	"context"
	"errors"
	"sync"
	"time"

	"StemFM/config"
	"StemFM/core/clock"
	"StemFM/core/mixer"
	"StemFM/core/trackstate"
	"StemFM/core/transport"
	"StemFM/logger"
	"StemFM/model"
	"StemFM/repository"
)

var ErrSongNotFound = errors.New("歌曲不存在")

// ResolveFunc 把分轨对象键解析为可播放地址（通常是预签名 URL）
type ResolveFunc func(ctx context.Context, objectKey string) (string, error)

// Service 播放编排服务。实现队列控制器需要的 LoadSong。
type Service struct {
	tp      *transport.Transport
	store   *trackstate.Store
	songs   repository.SongRepository
	resolve ResolveFunc
	userID  int64
	clk     clock.Clock
	tuning  func() config.SyncTuning

	mu           sync.Mutex
	mx           *mixer.Mixer
	songID       int64
	unsubMix     func()
	onMixChanged []func()
}

// NewService 创建播放编排服务。resolve 可为 nil（直接使用对象键，测试场景）。
func NewService(tp *transport.Transport, store *trackstate.Store, songs repository.SongRepository, resolve ResolveFunc, userID int64, clk clock.Clock, tuningFn func() config.SyncTuning) *Service {
	if clk == nil {
		clk = clock.New()
	}
	if resolve == nil {
		resolve = func(_ context.Context, objectKey string) (string, error) {
			return objectKey, nil
		}
	}
	if tuningFn == nil {
		tuningFn = func() config.SyncTuning {
			return config.SyncTuning{
				FollowerDebounceMs: 100,
				SeekToleranceSec:   0.1,
				ClickWindowMs:      300,
				ProgressTickMs:     50,
			}
		}
	}
	return &Service{
		tp:      tp,
		store:   store,
		songs:   songs,
		resolve: resolve,
		userID:  userID,
		clk:     clk,
		tuning:  tuningFn,
	}
}

// Transport 当前传输层
func (s *Service) Transport() *transport.Transport {
	return s.tp
}

// Mixer 当前歌曲的混音器，未加载歌曲时为 nil
func (s *Service) Mixer() *mixer.Mixer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mx
}

// UserID 播放身份
func (s *Service) UserID() int64 {
	return s.userID
}

// OnMixChanged 注册混音变更回调，随每首歌的混音器一起重新挂接
func (s *Service) OnMixChanged(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMixChanged = append(s.onMixChanged, fn)
}

// LoadSong 加载一首歌：取元数据、解析分轨地址、按存储的混音偏好
// 建立混音器，并订阅该歌的远端混音推送
func (s *Service) LoadSong(ctx context.Context, songID int64) error {
	song, err := s.songs.GetByID(ctx, songID)
	if err != nil {
		return err
	}
	if song == nil {
		return ErrSongNotFound
	}

	states, err := s.store.Load(ctx, s.userID, song)
	if err != nil {
		return err
	}

	resources := make([]model.TrackResource, 0, len(song.Tracks))
	for _, track := range song.Tracks {
		streamURL, err := s.resolve(ctx, track.ObjectKey)
		if err != nil {
			// 地址解析失败交给通道加载去落定为失败通道
			logger.Warn("分轨地址解析失败",
				logger.Int64("trackId", track.ID),
				logger.ErrorField(err))
		}
		resources = append(resources, model.TrackResource{
			TrackID:   track.ID,
			StreamURL: streamURL,
			Duration:  track.Duration,
		})
	}

	mix := make(map[int64]*model.TrackMixState, len(states))
	for trackID := range states {
		st := states[trackID]
		mix[trackID] = &st
	}

	// 换歌前断开上一首的混音推送
	s.mu.Lock()
	oldUnsub := s.unsubMix
	s.unsubMix = nil
	s.mu.Unlock()
	if oldUnsub != nil {
		oldUnsub()
	}

	pc, err := s.tp.Load(ctx, song, resources, mix)
	if err != nil {
		return err
	}

	clickWin := time.Duration(s.tuning().ClickWindowMs) * time.Millisecond
	mx := mixer.New(pc, s.store, s.userID, s.clk, clickWin)
	mx.ApplyAll(ctx)

	s.mu.Lock()
	s.mx = mx
	s.songID = song.ID
	for _, fn := range s.onMixChanged {
		mx.OnChange(fn)
	}
	s.mu.Unlock()

	unsub, err := s.store.Subscribe(ctx, s.userID, song.ID, func(states map[int64]model.TrackMixState) {
		// 订阅回调可能在换歌后才到达，只应用在当前歌曲上
		s.mu.Lock()
		current := s.mx
		currentSong := s.songID
		s.mu.Unlock()
		if current != mx || currentSong != song.ID {
			return
		}
		mx.ApplyRemote(context.Background(), states)
	})
	if err != nil {
		logger.Warn("混音推送订阅失败",
			logger.Int64("songId", song.ID),
			logger.ErrorField(err))
	} else {
		s.mu.Lock()
		s.unsubMix = unsub
		s.mu.Unlock()
	}

	return nil
}
