// Package sessionstore keeps login sessions in Redis. Only the session id
// travels in the (signed) cookie.
package sessionstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPrefix = "sess:"
	defaultMaxAge = 86400 * 30
)

type RedisStore struct {
	client *redis.Client
	codecs []securecookie.Codec
	opts   *gsessions.Options
	prefix string
}

var _ sessions.Store = (*RedisStore)(nil)

// NewRedisStore signs cookies with keyPairs, as gorilla's CookieStore does.
func NewRedisStore(client *redis.Client, keyPairs ...[]byte) *RedisStore {
	s := &RedisStore{
		client: client,
		codecs: securecookie.CodecsFromPairs(keyPairs...),
		opts:   &gsessions.Options{Path: "/", MaxAge: defaultMaxAge},
		prefix: DefaultPrefix,
	}
	s.setMaxAge(defaultMaxAge)
	return s
}

// Dial parses a redis:// URL and checks the server answers.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) Options(o sessions.Options) {
	s.opts = o.ToGorillaOptions()
	if s.opts.MaxAge > 0 {
		s.setMaxAge(s.opts.MaxAge)
	}
}

func (s *RedisStore) setMaxAge(age int) {
	for _, c := range s.codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

func (s *RedisStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New returns the stored session for the request cookie, or a fresh one when
// the cookie is missing, forged or expired.
func (s *RedisStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	sess := gsessions.NewSession(s, name)
	opts := *s.opts
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	if err := securecookie.DecodeMulti(name, c.Value, &sess.ID, s.codecs...); err != nil {
		log.Debug().Err(err).Str("module", "sessionstore").Msg("ignoring bad session cookie")
		sess.ID = ""
		return sess, nil
	}
	found, err := s.load(r.Context(), sess)
	if err != nil {
		return sess, err
	}
	sess.IsNew = !found
	return sess, nil
}

func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, sess *gsessions.Session) error {
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.client.Del(r.Context(), s.prefix+sess.ID).Err(); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		http.SetCookie(w, gsessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if err := s.save(r.Context(), sess); err != nil {
		return err
	}
	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, gsessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}

func (s *RedisStore) save(ctx context.Context, sess *gsessions.Session) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sess.Values); err != nil {
		return fmt.Errorf("encode session values: %w", err)
	}
	age := sess.Options.MaxAge
	if age == 0 {
		age = defaultMaxAge
	}
	if err := s.client.Set(ctx, s.prefix+sess.ID, buf.Bytes(), time.Duration(age)*time.Second).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, sess *gsessions.Session) (bool, error) {
	data, err := s.client.Get(ctx, s.prefix+sess.ID).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&sess.Values); err != nil {
		return false, fmt.Errorf("decode session values: %w", err)
	}
	return true, nil
}
