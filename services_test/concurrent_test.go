package svcmock_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/platkit/svcmock"
	"github.com/platkit/svcmock/mock"
	"github.com/stretchr/testify/suite"
)

type ConcurrentTestSuite struct {
	suite.Suite
	registry *svcmock.Registry
}

func (s *ConcurrentTestSuite) SetupTest() {
	s.registry = svcmock.NewRegistry()
}

func (s *ConcurrentTestSuite) TestConcurrentLookup() {
	for i := 0; i < 5; i++ {
		_, err := s.registry.Register([]string{mock.MailerContract}, &mock.Mailer{}, svcmock.Properties{
			"slot": fmt.Sprintf("%d", i),
		})
		s.Require().NoError(err)
	}

	var wg sync.WaitGroup
	failures := make(chan error, 20)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refs, err := s.registry.Lookup(mock.MailerContract, "")
			if err != nil {
				failures <- err
				return
			}
			if len(refs) != 5 {
				failures <- fmt.Errorf("expected 5 references, got %d", len(refs))
			}
			if _, ok := s.registry.LookupFirst(mock.MailerContract); !ok {
				failures <- fmt.Errorf("no first reference")
			}
		}()
	}
	wg.Wait()
	close(failures)
	for err := range failures {
		s.NoError(err)
	}
}

func (s *ConcurrentTestSuite) TestConcurrentRegisterUnregister() {
	relay := &mock.OptionalMultiRelay{}
	_, err := s.registry.Register(nil, relay, nil)
	s.Require().NoError(err)

	const workers = 8
	var wg sync.WaitGroup
	failures := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg, err := s.registry.Register([]string{mock.MailerContract}, &mock.Mailer{}, nil)
			if err != nil {
				failures <- err
				return
			}
			if _, err := s.registry.Lookup(mock.MailerContract, ""); err != nil {
				failures <- err
				return
			}
			if err := reg.Unregister(); err != nil {
				failures <- err
			}
		}()
	}
	wg.Wait()
	close(failures)
	for err := range failures {
		s.NoError(err)
	}

	// every mailer was bound exactly once and unbound exactly once
	s.Equal(workers, relay.BoundCount())
	s.Equal(workers, relay.UnboundCount())

	refs, err := s.registry.Lookup(mock.MailerContract, "")
	s.Require().NoError(err)
	s.Empty(refs)
}

func (s *ConcurrentTestSuite) TestMandatoryUnarySlotRace() {
	_, err := s.registry.Register([]string{mock.MailerContract}, &mock.Mailer{}, nil)
	s.Require().NoError(err)
	relay := &mock.UnaryRelay{}
	_, err = s.registry.Register(nil, relay, nil)
	s.Require().NoError(err)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.registry.Register([]string{mock.MailerContract}, &mock.Mailer{}, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	// the occupied slot rejects every contender
	rejected := 0
	for err := range results {
		var violation *svcmock.ReferenceViolationError
		if errors.As(err, &violation) {
			rejected++
		}
	}
	s.Equal(workers, rejected)
	s.Equal(1, relay.BoundCount())

	refs, err := s.registry.Lookup(mock.MailerContract, "")
	s.Require().NoError(err)
	s.Len(refs, 1)
}

func TestConcurrentSuite(t *testing.T) {
	suite.Run(t, new(ConcurrentTestSuite))
}
