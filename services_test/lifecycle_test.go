package svcmock_test

import (
	"errors"
	"testing"

	"github.com/platkit/svcmock"
	"github.com/platkit/svcmock/mock"
	"github.com/stretchr/testify/suite"
)

type LifecycleTestSuite struct {
	suite.Suite
	registry *svcmock.Registry
}

func (s *LifecycleTestSuite) SetupTest() {
	s.registry = svcmock.NewRegistry()
}

func (s *LifecycleTestSuite) TestActivateAndDeactivate() {
	svc := &mock.LifecycleService{}
	props := svcmock.Properties{"storage.kind": "disk"}

	invoked, err := s.registry.Activate(svc, props)
	s.Require().NoError(err)
	s.True(invoked)
	s.Equal(1, svc.Activations())
	s.Equal("disk", svc.LastProps()["storage.kind"])
	s.Same(s.registry, svc.LastRegistry())

	invoked, err = s.registry.Deactivate(svc, props)
	s.Require().NoError(err)
	s.True(invoked)
	s.Equal(1, svc.Deactivations())
}

func (s *LifecycleTestSuite) TestModified() {
	svc := &mock.LifecycleService{}
	invoked, err := s.registry.Modified(svc, svcmock.Properties{"storage.kind": "s3"})
	s.Require().NoError(err)
	s.True(invoked)
	s.Equal(1, svc.Modifications())
	s.Equal("s3", svc.LastProps()["storage.kind"])
}

func (s *LifecycleTestSuite) TestModifiedUndeclared() {
	invoked, err := s.registry.Modified(&mock.SilentService{}, nil)
	s.NoError(err)
	s.False(invoked)
}

func (s *LifecycleTestSuite) TestConventionalAccessorNames() {
	svc := &mock.ConventionalService{}

	invoked, err := s.registry.Activate(svc, nil)
	s.Require().NoError(err)
	s.True(invoked)
	s.Equal(1, svc.Started())

	invoked, err = s.registry.Deactivate(svc, nil)
	s.Require().NoError(err)
	s.True(invoked)
	s.Equal(1, svc.Stopped())
}

func (s *LifecycleTestSuite) TestMissingConventionalAccessorTolerated() {
	invoked, err := s.registry.Activate(&mock.SilentService{}, nil)
	s.NoError(err)
	s.False(invoked)
}

func (s *LifecycleTestSuite) TestDeclaredAccessorMissing() {
	_, err := s.registry.Activate(&mock.BrokenService{}, nil)
	var notFound *svcmock.AccessorNotFoundError
	s.Require().True(errors.As(err, &notFound))
	s.Equal("start", notFound.Accessor)
}

func (s *LifecycleTestSuite) TestMissingDescriptor() {
	var missing *svcmock.DescriptorMissingError

	_, err := s.registry.Activate(&mock.Mailer{}, nil)
	s.True(errors.As(err, &missing))
	_, err = s.registry.Deactivate(&mock.Mailer{}, nil)
	s.True(errors.As(err, &missing))
	_, err = s.registry.Modified(&mock.Mailer{}, nil)
	s.True(errors.As(err, &missing))
}

func (s *LifecycleTestSuite) TestShutdownReverseOrder() {
	journal := &mock.Journal{}
	_, err := s.registry.Register(nil, &mock.ShutdownProbe{Name: "first", Journal: journal}, nil)
	s.Require().NoError(err)
	_, err = s.registry.Register(nil, &mock.ShutdownProbe{Name: "second", Journal: journal}, nil)
	s.Require().NoError(err)

	s.registry.Shutdown()
	s.Equal([]string{"second", "first"}, journal.Entries())
}

func (s *LifecycleTestSuite) TestShutdownToleratesMissingMetadata() {
	journal := &mock.Journal{}
	_, err := s.registry.Register([]string{mock.MailerContract}, &mock.Mailer{}, nil)
	s.Require().NoError(err)
	_, err = s.registry.Register(nil, &mock.ShutdownProbe{Name: "probe", Journal: journal}, nil)
	s.Require().NoError(err)

	s.registry.Shutdown()
	s.Equal([]string{"probe"}, journal.Entries())

	refs, lookupErr := s.registry.Lookup(mock.MailerContract, "")
	s.Require().NoError(lookupErr)
	s.Empty(refs)
}

func (s *LifecycleTestSuite) TestShutdownClearsListeners() {
	listener := &mock.RecordingListener{}
	s.Require().NoError(s.registry.AddServiceListener(listener, ""))

	s.registry.Shutdown()

	_, err := s.registry.Register([]string{mock.MailerContract}, &mock.Mailer{}, nil)
	s.Require().NoError(err)
	s.Empty(listener.Events())
}

func TestLifecycleSuite(t *testing.T) {
	suite.Run(t, new(LifecycleTestSuite))
}
