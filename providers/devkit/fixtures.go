package devkit

// Canned API payloads shaped like the remote blog service responses.
const (
	PhotoPostFixture = `{
  "meta": {"status": 200, "msg": "OK"},
  "response": {
    "blog": {"name": "a", "url": "https://a.tumblr.com/"},
    "posts": [
      {
        "id": 123,
        "type": "photo",
        "photos": [
          {"caption": "", "original_size": {"width": 1280, "height": 960, "url": "https://64.media.tumblr.com/one_1280.jpg"}},
          {"caption": "", "original_size": {"width": 640, "height": 480, "url": "https://64.media.tumblr.com/two_640.jpg"}}
        ]
      }
    ],
    "total_posts": 1
  }
}`

	TextPostFixture = `{
  "meta": {"status": 200, "msg": "OK"},
  "response": {
    "posts": [
      {"id": 456, "type": "text", "body": "<p>hello</p>"}
    ],
    "total_posts": 1
  }
}`

	EmptyPostsFixture = `{"meta": {"status": 200, "msg": "OK"}, "response": {"posts": [], "total_posts": 0}}`

	UserInfoFixture = `{
  "meta": {"status": 200, "msg": "OK"},
  "response": {
    "user": {
      "name": "someone",
      "blogs": [
        {"name": "secondary", "url": "https://secondary.tumblr.com/", "primary": false},
        {"name": "someone", "url": "https://someone.tumblr.com/", "primary": true}
      ]
    }
  }
}`

	PostCreatedFixture = `{"meta": {"status": 201, "msg": "Created"}, "response": {"id": 987654321}}`
)
