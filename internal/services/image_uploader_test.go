package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"facilityops/internal/common"
	"facilityops/internal/config"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type ImageUploaderTestSuite struct {
	suite.Suite
	store    *MockMinioService
	uploader *imageUploader
	ctx      context.Context
}

func (suite *ImageUploaderTestSuite) SetupTest() {
	suite.store = new(MockMinioService)
	suite.ctx = context.Background()
	u := NewImageUploader(suite.store, config.MinIOConfig{
		Endpoint:    "minio:9000",
		Bucket:      "pics",
		MaxUploadMB: 1,
	}, zap.NewNop()).(*imageUploader)
	u.now = func() time.Time { return time.Date(2025, time.June, 20, 8, 0, 0, 0, time.UTC) }
	suite.uploader = u
}

func (suite *ImageUploaderTestSuite) TearDownTest() {
	suite.store.AssertExpectations(suite.T())
}

func TestImageUploaderTestSuite(t *testing.T) {
	suite.Run(t, new(ImageUploaderTestSuite))
}

func picture(name, contentType string, size int64) UploadFile {
	return UploadFile{Filename: name, ContentType: contentType, Size: size, Content: strings.NewReader("img")}
}

func (suite *ImageUploaderTestSuite) TestUpload_PreservesOrder() {
	var keys []string
	suite.store.On("PutObject", suite.ctx, "pics", mock.AnythingOfType("string"), mock.Anything, int64(3), mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { keys = append(keys, args.String(2)) }).
		Return(nil).Times(3)

	urls, err := suite.uploader.Upload(suite.ctx, []UploadFile{
		picture("front.JPG", "image/jpeg", 3),
		picture("side.png", "image/png", 3),
		picture("top.gif", "image/gif", 3),
	})

	suite.Require().NoError(err)
	suite.Require().Len(urls, 3)
	for i, ext := range []string{".jpg", ".png", ".gif"} {
		suite.True(strings.HasPrefix(keys[i], "workorders/2025/06/"), keys[i])
		suite.True(strings.HasSuffix(keys[i], ext), keys[i])
		suite.Equal("http://minio:9000/pics/"+keys[i], urls[i])
		suite.True(ownsURL(suite.uploader, urls[i]))
	}
}

func (suite *ImageUploaderTestSuite) TestUpload_ExtensionFromContentType() {
	var key string
	suite.store.On("PutObject", suite.ctx, "pics", mock.Anything, mock.Anything, int64(3), "image/png").
		Run(func(args mock.Arguments) { key = args.String(2) }).
		Return(nil)

	_, err := suite.uploader.Upload(suite.ctx, []UploadFile{picture("blob", "image/png", 3)})

	suite.Require().NoError(err)
	suite.True(strings.HasSuffix(key, ".png"), key)
}

func (suite *ImageUploaderTestSuite) TestUpload_FailureRemovesEarlierObjects() {
	var first string
	suite.store.On("PutObject", suite.ctx, "pics", mock.Anything, mock.Anything, int64(3), "image/jpeg").
		Run(func(args mock.Arguments) { first = args.String(2) }).
		Return(nil).Once()
	suite.store.On("PutObject", suite.ctx, "pics", mock.Anything, mock.Anything, int64(3), "image/png").
		Return(errors.New("connection reset")).Once()
	suite.store.On("RemoveObject", mock.Anything, "pics", mock.MatchedBy(func(key string) bool { return key == first })).
		Return(nil).Once()

	urls, err := suite.uploader.Upload(suite.ctx, []UploadFile{
		picture("a.jpg", "image/jpeg", 3),
		picture("b.png", "image/png", 3),
		picture("c.gif", "image/gif", 3),
	})

	suite.Nil(urls)
	suite.True(common.IsType(err, common.ErrorTypeUpstream))
	suite.store.AssertNotCalled(suite.T(), "PutObject", suite.ctx, "pics", mock.Anything, mock.Anything, int64(3), "image/gif")
}

func (suite *ImageUploaderTestSuite) TestUpload_Validation() {
	cases := map[string]struct {
		files []UploadFile
		field string
		code  string
	}{
		"not an image": {
			files: []UploadFile{picture("a.jpg", "image/jpeg", 3), picture("notes.txt", "text/plain", 3)},
			field: "pictures[1]",
			code:  "invalid_type",
		},
		"bad content type": {
			files: []UploadFile{picture("a.jpg", "", 3)},
			field: "pictures[0]",
			code:  "invalid_type",
		},
		"too large": {
			files: []UploadFile{picture("huge.jpg", "image/jpeg", 2<<20)},
			field: "pictures[0]",
			code:  "too_large",
		},
		"too many": {
			files: make([]UploadFile, MaxPicturesPerRequest+1),
			field: "pictures",
			code:  "too_many",
		},
	}

	for name, tc := range cases {
		_, err := suite.uploader.Upload(suite.ctx, tc.files)
		suite.Require().Error(err, name)
		details := common.ToAppError(err).Details.(common.ValidationErrors)
		suite.Equal(tc.field, details.Errors[0].Field, name)
		suite.Equal(tc.code, details.Errors[0].Code, name)
	}
	suite.store.AssertNotCalled(suite.T(), "PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ImageUploaderTestSuite) TestUpload_NoFiles() {
	urls, err := suite.uploader.Upload(suite.ctx, nil)
	suite.NoError(err)
	suite.Equal([]string{}, urls)
}

func (suite *ImageUploaderTestSuite) TestRemove_OnlyOwnObjects() {
	suite.store.On("RemoveObject", suite.ctx, "pics", "workorders/2025/06/a.jpg").Return(nil).Once()
	suite.store.On("RemoveObject", suite.ctx, "pics", "workorders/2025/06/b.jpg").Return(errors.New("gone")).Once()

	suite.uploader.Remove(suite.ctx, []string{
		"http://minio:9000/pics/workorders/2025/06/a.jpg",
		"https://elsewhere.example/pics/workorders/2025/06/x.jpg",
		"http://minio:9000/other-bucket/workorders/2025/06/y.jpg",
		"http://minio:9000/pics/workorders/2025/06/b.jpg",
		"http://minio:9000/pics/../secrets",
	})
}

func (suite *ImageUploaderTestSuite) TestPublicURLOverride() {
	u := NewImageUploader(suite.store, config.MinIOConfig{
		Endpoint:  "minio:9000",
		Bucket:    "pics",
		UseSSL:    true,
		PublicURL: "https://cdn.example.com/",
	}, zap.NewNop())

	suite.True(ownsURL(u, "https://cdn.example.com/pics/workorders/2025/06/a.jpg"))
	suite.False(ownsURL(u, "http://minio:9000/pics/workorders/2025/06/a.jpg"))
	suite.False(ownsURL(u, "https://cdn.example.com/pics/"))
}

func ownsURL(u ImageUploader, url string) bool {
	_, ok := u.(*imageUploader).objectKeyFromURL(url)
	return ok
}
